package sources_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nodewatch/internal/etl"
	"nodewatch/internal/etl/sources"
)

// stubRenderer returns a fixed page or error and remembers its target.
type stubRenderer struct {
	page   string
	err    error
	target string
	ctxErr error
}

func (s *stubRenderer) Render(ctx context.Context, target string) (string, error) {
	s.target = target
	if _, ok := ctx.Deadline(); !ok {
		s.ctxErr = errors.New("render context has no deadline")
	}
	return s.page, s.err
}

// leaderboard builds a page with n data rows of 11 cells; rows listed in short
// only get 5 cells.
func leaderboard(n int, short map[int]bool) string {
	var b strings.Builder
	b.WriteString(`<html><body><table><thead><tr>`)
	for _, col := range sources.DefaultTableColumns {
		fmt.Fprintf(&b, "<th>%s</th>", col)
	}
	b.WriteString(`</tr></thead><tbody>`)
	for i := 0; i < n; i++ {
		cells := len(sources.DefaultTableColumns)
		if short[i] {
			cells = 5
		}
		b.WriteString("<tr>")
		fmt.Fprintf(&b, `<td><a href="/node/%d"> 0xnode%02d </a></td>`, i, i)
		for j := 1; j < cells; j++ {
			fmt.Fprintf(&b, "<td><span>%d</span>.<span>%d</span></td>", i, j)
		}
		b.WriteString("</tr>")
	}
	b.WriteString(`</tbody></table></body></html>`)
	return b.String()
}

func TestTableSource_NormalizesRenderedRows(t *testing.T) {
	r := &stubRenderer{page: leaderboard(30, map[int]bool{0: true, 14: true, 29: true})}
	src, err := sources.NewTableSource(sources.TableConfig{URL: "https://example.test/leaderboard"}, r)
	require.NoError(t, err)

	snap, err := src.FetchSnapshot(context.Background(), etl.FetchRequest{NodeIDs: []string{"ignored"}})
	require.NoError(t, err)
	assert.NoError(t, r.ctxErr)
	assert.Equal(t, "https://example.test/leaderboard", r.target)

	assert.Equal(t, 27, snap.Len())
	assert.Equal(t, 3, snap.Stats.RowsDropped)
	assert.Len(t, etl.TopN(snap, 25), 25)
	assert.Equal(t, "0xnode01", snap.Records[0].NodeID)

	v, ok := snap.Records[0].Get("Uptime")
	require.True(t, ok)
	assert.Equal(t, "1.10", v, "inline elements are concatenated")
}

func TestTableSource_RenderFailureIsNetworkFailure(t *testing.T) {
	r := &stubRenderer{err: errors.New("context deadline exceeded")}
	src, err := sources.NewTableSource(sources.TableConfig{URL: "https://example.test"}, r)
	require.NoError(t, err)

	snap, err := src.FetchSnapshot(context.Background(), etl.FetchRequest{})

	assert.ErrorIs(t, err, etl.ErrNetworkFailure)
	require.NotNil(t, snap)
	assert.Zero(t, snap.Len())
}

func TestTableSource_NoTableIsMalformed(t *testing.T) {
	r := &stubRenderer{page: "<html><body><p>maintenance</p></body></html>"}
	src, err := sources.NewTableSource(sources.TableConfig{URL: "https://example.test"}, r)
	require.NoError(t, err)

	snap, err := src.FetchSnapshot(context.Background(), etl.FetchRequest{})

	assert.ErrorIs(t, err, etl.ErrMalformedPayload)
	assert.Zero(t, snap.Len())
}

func TestTableSource_CustomColumns(t *testing.T) {
	page := `<table><tr><td>0xa</td><td>1</td><td>Details</td></tr><tr><td>0xb</td></tr></table>`
	src, err := sources.NewTableSource(sources.TableConfig{
		URL:     "https://example.test",
		Columns: []string{"Node", "Score"},
	}, &stubRenderer{page: page})
	require.NoError(t, err)
	assert.Equal(t, etl.ColumnSchema{"Node", "Score"}, src.Schema())

	snap, err := src.FetchSnapshot(context.Background(), etl.FetchRequest{})
	require.NoError(t, err)
	require.Equal(t, 1, snap.Len())
	assert.Len(t, snap.Records[0].Fields, 2, "extra cells are truncated")
}

func TestNewTableSource_Validation(t *testing.T) {
	_, err := sources.NewTableSource(sources.TableConfig{}, nil)
	assert.Error(t, err)

	_, err = sources.NewTableSource(sources.TableConfig{URL: "x", Renderer: "firefox"}, nil)
	assert.Error(t, err)

	src, err := sources.NewTableSource(sources.TableConfig{URL: "x", Renderer: "static"}, nil)
	require.NoError(t, err)
	assert.Equal(t, sources.DefaultTableColumns, src.Schema())
	assert.Equal(t, "table", src.Spec().Type)
}

func TestExtractTableRows_SkipsHeaderAndCollapsesWhitespace(t *testing.T) {
	page := `<table>
	  <thead><tr><th>Miner</th><th>Score</th></tr></thead>
	  <tbody>
	    <tr><td>
	        0xabc
	    </td><td>9<b>7</b></td></tr>
	  </tbody>
	</table>`

	rows, err := sources.ExtractTableRows(strings.NewReader(page))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"0xabc", "97"}}, rows)
}

func TestStaticRenderer_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.html")
	require.NoError(t, os.WriteFile(path, []byte(leaderboard(2, nil)), 0o644))

	src, err := sources.NewTableSource(sources.TableConfig{URL: "file://" + path, Renderer: "static"}, nil)
	require.NoError(t, err)

	snap, err := src.FetchSnapshot(context.Background(), etl.FetchRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Len())

	_, err = (&sources.StaticRenderer{}).Render(context.Background(), filepath.Join(t.TempDir(), "missing.html"))
	assert.Error(t, err)
}

func TestStaticRenderer_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/down" {
			http.Error(w, "maintenance", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(leaderboard(3, nil)))
	}))
	defer srv.Close()

	r := &sources.StaticRenderer{Client: srv.Client()}

	page, err := r.Render(context.Background(), srv.URL+"/board")
	require.NoError(t, err)
	assert.Contains(t, page, "0xnode02")

	_, err = r.Render(context.Background(), srv.URL+"/down")
	require.Error(t, err)
	assert.Equal(t, "http 503: maintenance", err.Error())
}

func TestStaticRenderer_HonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	src, err := sources.NewTableSource(sources.TableConfig{
		URL:     srv.URL,
		Timeout: 50 * time.Millisecond,
	}, &sources.StaticRenderer{Client: srv.Client()})
	require.NoError(t, err)

	start := time.Now()
	_, err = src.FetchSnapshot(context.Background(), etl.FetchRequest{})
	assert.ErrorIs(t, err, etl.ErrNetworkFailure)
	assert.Less(t, time.Since(start), time.Second)
}
