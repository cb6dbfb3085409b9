package client

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/raulk/clock"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/msigvault/msig/chain/simulator"
	"github.com/msigvault/msig/directory"
	"github.com/msigvault/msig/log"
	"github.com/msigvault/msig/multisig"
	"github.com/msigvault/msig/signer"
)

var (
	rootOnce sync.Once
	testRoot *cobra.Command
)

func root() *cobra.Command {
	rootOnce.Do(func() {
		testRoot = &cobra.Command{Use: "msig", SilenceErrors: true}
		Register(testRoot)
	})
	return testRoot
}

func run(t *testing.T, args ...string) (string, error) {
	var out bytes.Buffer
	cmd := root()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// fakeDirectory keeps registrations in memory.
type fakeDirectory struct {
	mu      sync.Mutex
	records []directory.Record
}

func (d *fakeDirectory) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	if r.Method == http.MethodPost {
		var req directory.RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		d.records = append(d.records, directory.Record{ID: req.MultisigID, Members: req.Members})
		_ = json.NewEncoder(w).Encode(directory.MessageResponse{Message: directory.MsgRegistered})
		return
	}
	wallet := strings.TrimPrefix(r.URL.Path, "/")
	found := []directory.Record{}
	for _, rec := range d.records {
		for _, m := range rec.Members {
			if m == wallet {
				found = append(found, rec)
				break
			}
		}
	}
	if len(found) == 0 {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(directory.ErrorResponse{Error: directory.MsgMemberNotFound})
		return
	}
	_ = json.NewEncoder(w).Encode(found)
}

func setup(t *testing.T) (configPath string, key *signer.KeySigner) {
	sim := simulator.New(clock.New(), log.NewDefaultLogger("test"))
	deployer := sim.AddDeployer()
	rpcServer, err := simulator.NewServer(sim)
	require.NoError(t, err)
	node := httptest.NewServer(rpcServer)
	t.Cleanup(node.Close)
	dir := httptest.NewServer(&fakeDirectory{})
	t.Cleanup(dir.Close)

	seed := bytes.Repeat([]byte{7}, 32)
	key, err = signer.NewKeySigner(seed)
	require.NoError(t, err)

	tmp := t.TempDir()
	keyFile := filepath.Join(tmp, "key.hex")
	require.NoError(t, os.WriteFile(keyFile, []byte(hex.EncodeToString(seed)), 0o600))

	configPath = filepath.Join(tmp, "client.yml")
	cfg := fmt.Sprintf(`
client:
  node_url: %s
  directory_url: %s
  deployer: %s
  poll_initial: 1ms
  poll_max: 10ms
  signer:
    key_file: %s
log:
  level: warn
  file: %s
`, node.URL, dir.URL, deployer, keyFile, filepath.Join(tmp, "msig.log"))
	require.NoError(t, os.WriteFile(configPath, []byte(cfg), 0o600))
	return configPath, key
}

func TestClientCommands(t *testing.T) {
	cfg, key := setup(t)

	out, err := run(t, "deploy", "--config", cfg,
		"--name", "treasury",
		"--threshold", "100",
		"--member", key.Address().String(),
	)
	require.NoError(t, err)
	var deployed deployOutput
	require.NoError(t, json.Unmarshal([]byte(out), &deployed))
	require.True(t, deployed.Multisig.IsContract())
	require.True(t, deployed.Registered)
	id := deployed.Multisig.String()

	out, err = run(t, "info", "--config", cfg, id)
	require.NoError(t, err)
	var info infoOutput
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	require.Equal(t, "treasury", info.Info.Name)
	require.Equal(t, []multisig.Address{key.Address()}, info.Members)

	out, err = run(t, "proposal", "create-tx", "--config", cfg, id,
		"--title", "pay rent",
		"--recipient", key.Address().String(),
		"--token", id,
		"--amount", "1.5",
	)
	require.NoError(t, err)
	var created createdOutput
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	pid := fmt.Sprint(created.ProposalID)

	out, err = run(t, "proposal", "view", "--config", cfg, id, pid)
	require.NoError(t, err)
	require.Contains(t, out, `"amount": "1.5"`)
	require.Contains(t, out, `"effective_status": "Open"`)

	_, err = run(t, "proposal", "sign", "--config", cfg, id, pid)
	require.NoError(t, err)
	_, err = run(t, "proposal", "execute", "--config", cfg, id, pid)
	require.NoError(t, err)

	out, err = run(t, "proposals", "--config", cfg, id)
	require.NoError(t, err)
	require.Contains(t, out, `"effective_status": "Closed"`)

	out, err = run(t, "dashboard", "--config", cfg, key.Address().String())
	require.NoError(t, err)
	require.Contains(t, out, id)
}

func TestClientCommandErrors(t *testing.T) {
	cfg, key := setup(t)

	_, err := run(t, "info", "--config", cfg, key.Address().String())
	require.ErrorIs(t, err, multisig.ErrValidation)

	_, err = run(t, "proposal", "view", "--config", cfg, key.Address().String(), "zero")
	require.ErrorIs(t, err, multisig.ErrValidation)

	_, err = run(t, "info", "--config", filepath.Join(t.TempDir(), "missing.yml"), key.Address().String())
	require.Error(t, err)
}
