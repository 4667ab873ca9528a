package content

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"sefaria/internal/platform/sefariaapi"
	"sefaria/internal/testutil"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPHandler_GetText(t *testing.T) {
	f := newFixture(t, Config{})
	handler := NewHTTPHandler(f.svc)
	testutil.WriteZip(t, filepath.Join(f.libraryDir, "Genesis.zip"), map[string]string{
		"Genesis_1.json": genesis1JSON,
	})

	t.Run("success", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/v1/texts/Genesis%201:2", nil)
		r.SetPathValue("ref", "Genesis 1:2")

		handler.GetText(w, r)

		res := testutil.RecordHTTPResponse(w)
		require.Equal(t, http.StatusOK, res.Code)
		data := res.Body["data"].(map[string]interface{})
		assert.Equal(t, "Genesis 1", data["sectionRef"])
		assert.Len(t, data["content"], 3)
	})

	t.Run("unknown book", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/v1/texts/Nowhere%201", nil)
		r.SetPathValue("ref", "Nowhere 1")

		handler.GetText(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("offline and not downloaded", func(t *testing.T) {
		f.prioritizer.EXPECT().PrioritizeDownload("Exodus")
		f.fetcher.EXPECT().GetText(gomock.Any(), "Exodus 3").Return(nil, errors.New("dial tcp: no route to host"))
		f.prompter.EXPECT().ConfirmRetry(gomock.Any(), "Exodus 3", gomock.Any()).Return(false)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/v1/texts/Exodus%203", nil)
		r.SetPathValue("ref", "Exodus 3")

		handler.GetText(w, r)

		res := testutil.RecordHTTPResponse(w)
		assert.Equal(t, http.StatusServiceUnavailable, res.Code)
		assert.Equal(t, "UNAVAILABLE", testutil.ErrorCode(res.Body))
	})

	t.Run("links only", func(t *testing.T) {
		f.prioritizer.EXPECT().PrioritizeDownload("Exodus")
		f.fetcher.EXPECT().GetLinks(gomock.Any(), "Exodus 4:2").Return([]sefariaapi.RawLink{rashiLink("Exodus 4:2")}, nil)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/v1/texts/Exodus%204:2?links=1", nil)
		r.SetPathValue("ref", "Exodus 4:2")

		handler.GetText(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestHTTPHandler_Resolve(t *testing.T) {
	f := newFixture(t, Config{})
	handler := NewHTTPHandler(f.svc)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/v1/refs/Rashi%20on%20Genesis%201:1:1", nil)
	r.SetPathValue("ref", "Rashi on Genesis 1:1:1")
	handler.Resolve(w, r)

	res := testutil.RecordHTTPResponse(w)
	require.Equal(t, http.StatusOK, res.Code)
	data := res.Body["data"].(map[string]interface{})
	assert.Equal(t, "Rashi on Genesis", data["title"])
	assert.Equal(t, "Commentary", data["category"])
	assert.Equal(t, "Rashi on Genesis 1:1", data["section_ref"])

	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodGet, "/v1/refs/Nowhere", nil)
	r.SetPathValue("ref", "Nowhere")
	handler.Resolve(w, r)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
