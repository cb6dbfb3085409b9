package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/msigvault/msig/directory"
	"github.com/msigvault/msig/log"
	"github.com/msigvault/msig/multisig"
	store "github.com/msigvault/msig/storage/directory"
)

type memStore struct {
	mu   sync.Mutex
	rows map[string][]string
	err  error
}

func (s *memStore) Lookup(ctx context.Context, wallet string) ([]store.Multisig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := []store.Multisig{}
	for id, members := range s.rows {
		for _, m := range members {
			if m == wallet {
				out = append(out, store.Multisig{ID: id, Members: members})
				break
			}
		}
	}
	return out, nil
}

func (s *memStore) Record(ctx context.Context, id string, members []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.rows[id] = members
	return nil
}

func newTestServer(t *testing.T) (*memStore, *httptest.Server) {
	s := &memStore{rows: map[string][]string{}}
	srv := httptest.NewServer(NewDirectoryAPI(s, log.NewDefaultLogger("api-test")).Router(nil))
	t.Cleanup(srv.Close)
	return s, srv
}

func decodeError(t *testing.T, resp *http.Response) string {
	var body directory.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Error
}

func post(t *testing.T, srv *httptest.Server, body string) *http.Response {
	resp, err := http.Post(srv.URL+"/multisig", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, srv *httptest.Server, path string) *http.Response {
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRegisterAndLookup(t *testing.T) {
	_, srv := newTestServer(t)

	resp := post(t, srv, `{"multisigId":"CONE","members":["GALICE","GBOB"]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var msg directory.MessageResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&msg))
	require.Equal(t, directory.MsgRegistered, msg.Message)

	resp = get(t, srv, "/GBOB")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var records []directory.Record
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&records))
	require.Equal(t, []directory.Record{{ID: "CONE", Members: []string{"GALICE", "GBOB"}}}, records)

	// Upsert replaces members.
	resp = post(t, srv, `{"multisigId":"CONE","members":["GCAROL"]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = get(t, srv, "/GBOB")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, directory.MsgMemberNotFound, decodeError(t, resp))
}

func TestBadRequests(t *testing.T) {
	s, srv := newTestServer(t)

	resp := get(t, srv, "/")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	for _, body := range []string{
		`{"members":["GA"]}`,
		`{"multisigId":"","members":["GA"]}`,
		`{"multisigId":"C1"}`,
		`{"multisigId":"C1","members":"GA"}`,
		`{"multisigId":"C1","members":[1,2]}`,
		`not json`,
	} {
		resp := post(t, srv, body)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		require.NotEmpty(t, decodeError(t, resp))
	}
	require.Empty(t, s.rows)

	resp = post(t, srv, `{"multisigId":"C1","members":[]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStorageFailure(t *testing.T) {
	s, srv := newTestServer(t)
	s.err = errors.New("connection reset by peer")

	resp := get(t, srv, "/GALICE")
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, directory.MsgDatabaseError, decodeError(t, resp))

	resp = post(t, srv, `{"multisigId":"C1","members":["GA"]}`)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, directory.MsgDatabaseError, decodeError(t, resp))
}

func TestCorsPreflight(t *testing.T) {
	s := &memStore{rows: map[string][]string{}}
	srv := httptest.NewServer(NewDirectoryAPI(s, log.NewDefaultLogger("api-test")).Router([]string{"https://app.example"}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/multisig", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "https://app.example", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestDirectoryClientAgainstAPI(t *testing.T) {
	_, srv := newTestServer(t)
	c, err := directory.NewClient(srv.URL)
	require.NoError(t, err)
	ctx := context.Background()

	key := make([]byte, 32)
	key[0] = 7
	member, err := multisig.AccountAddress(key)
	require.NoError(t, err)
	id, err := multisig.ContractAddress(key)
	require.NoError(t, err)

	records, err := c.Lookup(ctx, member)
	require.NoError(t, err)
	require.Empty(t, records)

	require.NoError(t, c.Register(ctx, id, []multisig.Address{member}))
	records, err = c.Lookup(ctx, member)
	require.NoError(t, err)
	require.Equal(t, []directory.Record{{ID: id.String(), Members: []string{member.String()}}}, records)
}

func TestNormalizeEndpoint(t *testing.T) {
	require.Equal(t, "/multisig", normalizeEndpoint("/multisig"))
	require.Equal(t, "/*", normalizeEndpoint("/"+strings.Repeat("G", 56)))
}
