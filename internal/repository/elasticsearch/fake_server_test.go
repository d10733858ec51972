package elasticsearch

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/require"
)

type fakeDoc struct {
	source      map[string]any
	seqNo       int64
	primaryTerm int64
}

// fakeCluster emulates the handful of document APIs the repositories use.
type fakeCluster struct {
	mu    sync.Mutex
	docs  map[string]*fakeDoc
	seqNo int64

	// failIDs lists document ids the bulk endpoint refuses.
	failIDs map[string]bool
	// indexConflicts rejects that many conditional index calls with 409 after
	// bumping the stored document as a concurrent writer would.
	indexConflicts int
	// status, when set, is returned for every request.
	status int

	bulkRequests int
}

func newFakeCluster() *fakeCluster {
	return &fakeCluster{docs: map[string]*fakeDoc{}, failIDs: map[string]bool{}}
}

func newFakeClient(t *testing.T, cluster *fakeCluster) *elasticsearch.Client {
	t.Helper()
	srv := httptest.NewServer(cluster)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return client
}

func (c *fakeCluster) put(index, id string, source map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seqNo++
	c.docs[index+"/"+id] = &fakeDoc{source: source, seqNo: c.seqNo, primaryTerm: 1}
}

func (c *fakeCluster) source(index, id string) (map[string]any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	doc, ok := c.docs[index+"/"+id]
	if !ok {
		return nil, false
	}
	return doc.source, true
}

func (c *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != 0 {
		writeJSON(w, c.status, map[string]any{"error": map[string]any{"type": "cluster_block_exception"}})
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case len(parts) == 1 && parts[0] == "_bulk":
		c.bulk(w, r)
	case len(parts) == 3 && parts[1] == "_doc" && r.Method == http.MethodGet:
		c.get(w, parts[0], parts[2])
	case len(parts) == 3 && parts[1] == "_create":
		c.create(w, r, parts[0], parts[2])
	case len(parts) == 3 && parts[1] == "_doc":
		c.index(w, r, parts[0], parts[2])
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unsupported " + r.Method + " " + r.URL.Path})
	}
}

func (c *fakeCluster) get(w http.ResponseWriter, index, id string) {
	doc, ok := c.docs[index+"/"+id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"_index": index, "_id": id, "found": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"_index":        index,
		"_id":           id,
		"found":         true,
		"_seq_no":       doc.seqNo,
		"_primary_term": doc.primaryTerm,
		"_source":       doc.source,
	})
}

func (c *fakeCluster) create(w http.ResponseWriter, r *http.Request, index, id string) {
	if _, ok := c.docs[index+"/"+id]; ok {
		writeJSON(w, http.StatusConflict, map[string]any{"error": map[string]any{"type": "version_conflict_engine_exception"}})
		return
	}
	source, err := decodeSource(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	c.seqNo++
	c.docs[index+"/"+id] = &fakeDoc{source: source, seqNo: c.seqNo, primaryTerm: 1}
	writeJSON(w, http.StatusCreated, map[string]any{"_index": index, "_id": id, "result": "created"})
}

func (c *fakeCluster) index(w http.ResponseWriter, r *http.Request, index, id string) {
	source, err := decodeSource(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	doc, ok := c.docs[index+"/"+id]
	if q := r.URL.Query(); q.Get("if_seq_no") != "" {
		if c.indexConflicts > 0 && ok {
			c.indexConflicts--
			c.seqNo++
			doc.seqNo = c.seqNo
			writeJSON(w, http.StatusConflict, map[string]any{"error": map[string]any{"type": "version_conflict_engine_exception"}})
			return
		}
		seqNo, _ := strconv.ParseInt(q.Get("if_seq_no"), 10, 64)
		primaryTerm, _ := strconv.ParseInt(q.Get("if_primary_term"), 10, 64)
		if !ok || doc.seqNo != seqNo || doc.primaryTerm != primaryTerm {
			writeJSON(w, http.StatusConflict, map[string]any{"error": map[string]any{"type": "version_conflict_engine_exception"}})
			return
		}
	}

	c.seqNo++
	c.docs[index+"/"+id] = &fakeDoc{source: source, seqNo: c.seqNo, primaryTerm: 1}
	writeJSON(w, http.StatusOK, map[string]any{"_index": index, "_id": id, "result": "updated"})
}

func (c *fakeCluster) bulk(w http.ResponseWriter, r *http.Request) {
	c.bulkRequests++

	scanner := bufio.NewScanner(r.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var items []map[string]any
	for scanner.Scan() {
		var action bulkAction
		if err := json.Unmarshal(scanner.Bytes(), &action); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
			return
		}
		if !scanner.Scan() {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "missing document line"})
			return
		}
		var upsert bulkUpsert
		if err := json.Unmarshal(scanner.Bytes(), &upsert); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
			return
		}

		target := action.Update
		if c.failIDs[target.ID] {
			items = append(items, map[string]any{"update": map[string]any{
				"_index": target.Index,
				"_id":    target.ID,
				"status": http.StatusBadRequest,
				"error":  map[string]any{"type": "mapper_parsing_exception", "reason": "failed to parse"},
			}})
			continue
		}

		key := target.Index + "/" + target.ID
		c.seqNo++
		if doc, ok := c.docs[key]; ok {
			deepMerge(doc.source, upsert.Doc)
			doc.seqNo = c.seqNo
		} else {
			c.docs[key] = &fakeDoc{source: upsert.Doc, seqNo: c.seqNo, primaryTerm: 1}
		}
		items = append(items, map[string]any{"update": map[string]any{
			"_index": target.Index,
			"_id":    target.ID,
			"status": http.StatusOK,
		}})
	}

	errs := false
	for _, item := range items {
		if item["update"].(map[string]any)["error"] != nil {
			errs = true
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"took": 1, "errors": errs, "items": items})
}

func deepMerge(dst, src map[string]any) {
	for k, v := range src {
		if srcMap, ok := v.(map[string]any); ok {
			if dstMap, ok := dst[k].(map[string]any); ok {
				deepMerge(dstMap, srcMap)
				continue
			}
		}
		dst[k] = v
	}
}

func decodeSource(body io.Reader) (map[string]any, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var source map[string]any
	if err := dec.Decode(&source); err != nil {
		return nil, fmt.Errorf("decode source: %w", err)
	}
	return source, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
