package links

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"formsai/internal/logger"
)

func quietLogger() *logger.Logger {
	return logger.Config{Level: logger.LevelError, Out: io.Discard}.For(logger.ComponentLinks)
}

func TestRowsToLinks(t *testing.T) {
	rows := [][]string{
		{"Name", "Link"},
		{"Survey A", "https://forms.office.com/r/a"},
		{"No URL"},
		{"Mail", "mailto:someone@example.com"},
		{"", " http://forms.office.com/r/b "},
		{"Blank", ""},
	}

	got := RowsToLinks(rows)

	assert.Equal(t, []FormLink{
		{Name: "Survey A", URL: "https://forms.office.com/r/a"},
		{Name: "Form 4", URL: "http://forms.office.com/r/b"},
	}, got)
}

func TestSpreadsheetSourceXLSX(t *testing.T) {
	dir := t.TempDir()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"Formulaire", "Lien"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"Enquête", "https://forms.office.com/r/x"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{"Sans lien", "n/a"}))
	require.NoError(t, f.SaveAs(filepath.Join(dir, "forms.xlsx")))
	require.NoError(t, f.Close())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), []byte("name,url\nIgnored,https://forms.office.com/r/csv\n"), 0o644))

	got, err := NewSpreadsheetSource(dir, quietLogger()).Links(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []FormLink{{Name: "Enquête", URL: "https://forms.office.com/r/x"}}, got)
}

func TestSpreadsheetSourceCSV(t *testing.T) {
	dir := t.TempDir()
	body := "name,url,owner\nA,https://forms.office.com/r/a,me\nB,ftp://nope\nC,https://forms.office.com/r/c\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "links.csv"), []byte(body), 0o644))

	got, err := NewSpreadsheetSource(dir, nil).Links(context.Background())

	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "C", got[1].Name)
}

func TestSpreadsheetSourceEmptyDir(t *testing.T) {
	_, err := NewSpreadsheetSource(t.TempDir(), nil).Links(context.Background())
	assert.ErrorIs(t, err, ErrNoSpreadsheet)

	_, err = FindSpreadsheet(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, ErrNoSpreadsheet)
}

func TestCombine(t *testing.T) {
	a := Static{{Name: "A", URL: "https://f/a"}, {Name: "B", URL: "https://f/b"}}
	b := Static{{Name: "B again", URL: "https://f/b"}, {Name: "C", URL: "https://f/c"}}
	broken := SourceFunc(func(context.Context) ([]FormLink, error) { return nil, errors.New("sheet locked") })

	got, err := Combine(a, broken, b, nil).Links(context.Background())

	assert.ErrorContains(t, err, "sheet locked")
	assert.Equal(t, []FormLink{{Name: "A", URL: "https://f/a"}, {Name: "B", URL: "https://f/b"}, {Name: "C", URL: "https://f/c"}}, got)
}

func TestDiscoverySource(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
			<a href="https://forms.office.com/r/one#top">Customer survey</a>
			<a href="/more">More</a>
			<a href="https://example.org/elsewhere">Elsewhere</a>
		</body></html>`)
	})
	mux.HandleFunc("/more", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
			<a href="https://forms.office.com/r/two"></a>
			<a href="https://forms.office.com/r/one">Duplicate</a>
		</body></html>`)
	})

	src := NewDiscoverySource(srv.URL, 2, quietLogger())
	got, err := src.Links(context.Background())

	require.NoError(t, err)
	assert.ElementsMatch(t, []FormLink{
		{Name: "Customer survey", URL: "https://forms.office.com/r/one"},
		{Name: "https://forms.office.com/r/two", URL: "https://forms.office.com/r/two"},
	}, got)
}

func TestDiscoverySourceWithoutSeed(t *testing.T) {
	got, err := NewDiscoverySource("", 1, quietLogger()).Links(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, got)
}
