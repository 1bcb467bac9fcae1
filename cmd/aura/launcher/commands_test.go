package launcher

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Fantom-foundation/lachesis-base/hash"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-aura-asset/inter/validatorpk"
)

// runCommand runs the aura app and returns what it wrote to stdout.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = io.Discard
	err := app.Run(append([]string{"aura"}, args...))
	return out.String(), err
}

func TestScheduleCommand(t *testing.T) {
	require := require.New(t)

	out, err := runCommand(t, "schedule", "--authorities", "10,20,30", "--from", "0", "--count", "4")
	require.NoError(err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(lines, 5)
	require.Equal([]string{"SLOT", "START", "AUTHOR"}, strings.Fields(lines[0]))

	want := [][]string{
		{"0", "1970-01-01T00:00:00Z", "10"},
		{"1", "1970-01-01T00:00:02Z", "20"},
		{"2", "1970-01-01T00:00:04Z", "30"},
		{"3", "1970-01-01T00:00:06Z", "10"},
	}
	for i, w := range want {
		require.Equal(w, strings.Fields(lines[i+1]))
	}

	_, err = runCommand(t, "schedule", "--count", "4")
	require.Error(err, "authorities are required")
	_, err = runCommand(t, "schedule", "--authorities", "1,1")
	require.Error(err, "duplicate authority")
}

func TestScheduleCommand_globalFlags(t *testing.T) {
	out, err := runCommand(t, "--slot.duration", "10s", "schedule", "--authorities", "1,2", "--from", "1", "--count", "1")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Equal(t, []string{"1", "1970-01-01T00:00:10Z", "2"}, strings.Fields(lines[1]))
}

func TestCheckCommand(t *testing.T) {
	block := blockHex(fakeHash(1))
	base := []string{"check", "--authorities", "1,2,3", "--slot", "6", "--time", "13000",
		"--block", block, "--parent-time", "11000", "--now", "13000"}

	tests := []struct {
		name   string
		extra  []string
		status string
		stage  string
	}{
		{"owner", []string{"--author", "1"}, "accepted", "equivocation_checked"},
		{"wrong author", []string{"--author", "2"}, "rejected", "snapshot_resolved"},
		{"future", []string{"--author", "1", "--now", "1970-01-01T00:00:12Z"}, "rejected", "slot_computed"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			out, err := runCommand(t, append(base, test.extra...)...)
			require.NoError(t, err)

			var v verdictJSON
			require.NoError(t, json.Unmarshal([]byte(out), &v))
			require.Equal(t, test.status, v.Status)
			require.Equal(t, test.stage, v.Stage)
			require.Equal(t, block, v.Block)
		})
	}

	_, err := runCommand(t, "check", "--authorities", "1", "--time", "soon", "--parent-time", "0", "--block", block)
	require.Error(t, err)
	_, err = runCommand(t, "check", "--authorities", "1", "--time", "1", "--parent-time", "0", "--block", "0x01")
	require.Error(t, err)
}

func TestFakeKeysCommand(t *testing.T) {
	require := require.New(t)

	out, err := runCommand(t, "fakekeys", "--count", "2")
	require.NoError(err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(lines, 2)
	for i, line := range lines {
		key := validatorpk.FakeKey(i + 1)
		fields := strings.Fields(line)
		require.Len(fields, 2)
		require.Equal(validatorpk.FromECDSA(&key.PublicKey).String(), fields[1])
	}

	block := fakeHash(7)
	out, err = runCommand(t, "fakekeys", "--count", "1", "--block", blockHex(block))
	require.NoError(err)
	fields := strings.Fields(strings.TrimSpace(out))
	require.Len(fields, 3)

	sig, err := hexutil.Decode(fields[2])
	require.NoError(err)
	pk, err := validatorpk.FromString(fields[1])
	require.NoError(err)
	v := validatorpk.NewSecp256k1Verifier()
	require.NoError(v.Register(1, pk))
	require.NoError(v.Verify(1, block, sig))
}

func writeReplayFile(t *testing.T, input replayFile) string {
	t.Helper()
	data, err := json.Marshal(input)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "claims.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestReplayCommand(t *testing.T) {
	// fakenet: 2s slots from unix 0, authorities 1,2,3.
	claims := []claimJSON{
		{Fork: 0, Position: 1, Slot: 6, Time: "12500", Author: 1, Block: blockHex(fakeHash(1)), ParentTime: "11000"},
		{Fork: 0, Position: 2, Slot: 7, Time: "14500", Author: 2, Block: blockHex(fakeHash(2)), ParentTime: "12500"},
		{Fork: 1, Position: 1, Slot: 6, Time: "12600", Author: 1, Block: blockHex(fakeHash(3)), ParentTime: "11000"},
		{Fork: 1, Position: 2, Slot: 7, Time: "14600", Author: 3, Block: blockHex(fakeHash(4)), ParentTime: "12600"},
	}

	for _, parallel := range []bool{false, true} {
		name := "sequential"
		if parallel {
			name = "parallel"
		}
		t.Run(name, func(t *testing.T) {
			require := require.New(t)

			path := writeReplayFile(t, replayFile{Now: "15000", Claims: claims})
			args := []string{"replay", "--authorities", "1,2,3", "--file", path}
			if parallel {
				args = append(args, "--parallel")
			}
			out, err := runCommand(t, args...)
			require.NoError(err)

			var report replayReport
			require.NoError(json.Unmarshal([]byte(out), &report))
			require.Len(report.Verdicts, 4)

			for i, v := range report.Verdicts {
				require.Equal(i, v.Index)
			}
			// slot 6 is equivocated by authority 1: exactly one block wins
			require.NotEqual(report.Verdicts[0].Status, report.Verdicts[2].Status)
			require.Equal("accepted", report.Verdicts[1].Status)
			require.Equal("rejected", report.Verdicts[3].Status)
			require.Equal("snapshot_resolved", report.Verdicts[3].Stage)

			require.Len(report.Equivocations, 1)
			require.Equal(uint64(6), report.Equivocations[0].Slot)
			require.Equal(uint32(1), report.Equivocations[0].Author)
			require.ElementsMatch([]string{blockHex(fakeHash(1)), blockHex(fakeHash(3))}, report.Equivocations[0].Blocks)
			require.Equal(uint32(1), report.Severity)
			require.Equal([]uint32{1}, report.Culprits)
		})
	}
}

func TestReplayCommand_signatures(t *testing.T) {
	require := require.New(t)

	block := fakeHash(1)
	good, err := validatorpk.Sign(validatorpk.FakeKey(1), block)
	require.NoError(err)
	forged, err := validatorpk.Sign(validatorpk.FakeKey(2), block)
	require.NoError(err)
	key := validatorpk.FakeKey(1)

	path := writeReplayFile(t, replayFile{
		Now:  "13000",
		Keys: map[string]string{"1": validatorpk.FromECDSA(&key.PublicKey).String()},
		Claims: []claimJSON{
			{Position: 1, Slot: 6, Time: "12500", Author: 1, Block: blockHex(block), ParentTime: "11000", Sig: hexutil.Encode(forged)},
			{Position: 1, Slot: 6, Time: "12500", Author: 1, Block: blockHex(block), ParentTime: "11000", Sig: hexutil.Encode(good)},
		},
	})
	out, err := runCommand(t, "replay", "--authorities", "1,2,3", "--file", path)
	require.NoError(err)

	var report replayReport
	require.NoError(json.Unmarshal([]byte(out), &report))
	require.Equal("rejected", report.Verdicts[0].Status)
	require.Equal("received", report.Verdicts[0].Stage)
	require.Equal("accepted", report.Verdicts[1].Status)
	require.Empty(report.Equivocations)
}

func TestReplayCommand_metrics(t *testing.T) {
	require := require.New(t)
	defer func(prev bool) { metrics.Enabled = prev }(metrics.Enabled)

	path := writeReplayFile(t, replayFile{Now: "13000", Claims: []claimJSON{
		{Position: 1, Slot: 6, Time: "12500", Author: 1, Block: blockHex(fakeHash(1)), ParentTime: "11000"},
	}})

	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	require.NoError(app.Run([]string{"aura", "--metrics", "replay", "--authorities", "1,2,3", "--file", path}))

	var report replayReport
	require.NoError(json.Unmarshal(out.Bytes(), &report), "metrics stay off stdout")
	require.Contains(errOut.String(), "aura/import/accepted count=")
	require.Contains(errOut.String(), "aura/import/time count=")
}

func TestReplayCommand_errors(t *testing.T) {
	_, err := runCommand(t, "replay", "--authorities", "1")
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
	_, err = runCommand(t, "replay", "--authorities", "1", "--file", path)
	require.Error(t, err)
}

// fakeHash is a deterministic block identity.
func fakeHash(seed int64) hash.Hash {
	return hash.Hash(hash.FakeHash(seed))
}
