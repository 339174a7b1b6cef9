package client

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// useTempSettings points the settings file into a temp dir and clears the
// environment overrides for the duration of the test.
func useTempSettings(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "regassist", "config.json")
	orig := settingsPathFunc
	settingsPathFunc = func() (string, error) { return path, nil }
	t.Cleanup(func() { settingsPathFunc = orig })

	t.Setenv(envAPIKey, "")
	t.Setenv(envAPIURL, "")
	t.Setenv(envTimeout, "")
	return path
}

// rootFlags builds a command carrying the persistent flags of the regassist
// root command plus the eval flags.
func rootFlags() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().Bool("output", false, "")
	cmd.Flags().String("api-key", "", "")
	cmd.Flags().String("api-url", "", "")
	cmd.Flags().Duration("timeout", 0, "")
	cmd.Flags().String("out-dir", "", "")
	cmd.Flags().Int("k", 0, "")
	return cmd
}

func TestDefaultSettingsPath(t *testing.T) {
	path, err := defaultSettingsPath()
	if err != nil {
		t.Skipf("no user config dir: %v", err)
	}
	assert.True(t, filepath.IsAbs(path))
	assert.Equal(t, "config.json", filepath.Base(path))
	assert.Equal(t, "regassist", filepath.Base(filepath.Dir(path)))
}

func TestLoadSettings_Missing(t *testing.T) {
	useTempSettings(t)

	s, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, Settings{}, *s)
}

func TestLoadSettings_InvalidJSON(t *testing.T) {
	path := useTempSettings(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := LoadSettings()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

func TestSaveSettings_RoundTrip(t *testing.T) {
	path := useTempSettings(t)

	want := &Settings{
		APIURL:  "http://regassist.internal:8080",
		APIKey:  testAPIKey,
		Timeout: "90s",
		Output:  formatJSON,
		EvalDir: "runs",
		EvalK:   3,
	}
	require.NoError(t, SaveSettings(want))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "runs", raw["eval_dir"])

	got, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestSaveSettings_EmptyRemovesFile(t *testing.T) {
	path := useTempSettings(t)
	require.NoError(t, SaveSettings(&Settings{Output: formatJSON}))

	require.NoError(t, SaveSettings(&Settings{}))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// removing twice is fine
	require.NoError(t, SaveSettings(&Settings{}))
}

func TestSaveSettings_Nil(t *testing.T) {
	useTempSettings(t)
	assert.Error(t, SaveSettings(nil))
}

func TestSettings_SetAndGet(t *testing.T) {
	tests := []struct {
		key   string
		value string
		want  string
	}{
		{KeyAPIURL, "http://host:9000/", "http://host:9000"},
		{KeyAPIKey, testAPIKey, testAPIKey},
		{KeyTimeout, "5m", "5m"},
		{KeyOutput, "json", "json"},
		{KeyEvalDir, " runs/today ", "runs/today"},
		{KeyEvalK, "10", "10"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			var s Settings
			require.NoError(t, s.Set(tt.key, tt.value))
			got, err := s.Get(tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			require.NoError(t, s.Set(tt.key, ""))
			got, err = s.Get(tt.key)
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestSettings_SetRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{KeyAPIKey, "rga_short"},
		{KeyAPIKey, "sk-" + testAPIKey[4:]},
		{KeyTimeout, "soon"},
		{KeyTimeout, "-5s"},
		{KeyOutput, "yaml"},
		{KeyEvalK, "zero"},
		{KeyEvalK, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			var s Settings
			assert.Error(t, s.Set(tt.key, tt.value))
			assert.Equal(t, Settings{}, s)
		})
	}
}

func TestSettings_UnknownKey(t *testing.T) {
	var s Settings
	err := s.Set("model", "qwen")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown setting")
	assert.Contains(t, err.Error(), KeyEvalK)

	_, err = s.Get("model")
	assert.Error(t, err)
}

func TestIsValidAPIKey(t *testing.T) {
	assert.True(t, IsValidAPIKey(testAPIKey))
	assert.False(t, IsValidAPIKey(""))
	assert.False(t, IsValidAPIKey("rga_"))
	assert.False(t, IsValidAPIKey(testAPIKey+"0"))
	assert.False(t, IsValidAPIKey("rga_zz"+testAPIKey[6:]))
}

func TestResolve_Defaults(t *testing.T) {
	useTempSettings(t)

	r, err := Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, defaultAPIURL, r.APIURL)
	assert.Empty(t, r.APIKey)
	assert.Equal(t, defaultTimeout, r.Timeout)
	assert.False(t, r.JSON)
	assert.Equal(t, defaultEvalDir, r.EvalDir)
	assert.Equal(t, defaultEvalK, r.EvalK)
	for _, key := range SettingKeys {
		assert.Equal(t, FromDefault, r.Sources[key], key)
	}
}

func TestResolve_StoredSettings(t *testing.T) {
	useTempSettings(t)
	require.NoError(t, SaveSettings(&Settings{
		APIURL:  "http://stored:8080",
		APIKey:  testAPIKey,
		Timeout: "30s",
		Output:  formatJSON,
		EvalDir: "stored-runs",
		EvalK:   8,
	}))

	r, err := Resolve(rootFlags())
	require.NoError(t, err)
	assert.Equal(t, "http://stored:8080", r.APIURL)
	assert.Equal(t, testAPIKey, r.APIKey)
	assert.Equal(t, 30*time.Second, r.Timeout)
	assert.True(t, r.JSON)
	assert.Equal(t, "stored-runs", r.EvalDir)
	assert.Equal(t, 8, r.EvalK)
	for _, key := range SettingKeys {
		assert.Equal(t, FromFile, r.Sources[key], key)
	}
}

func TestResolve_EnvOverridesStored(t *testing.T) {
	useTempSettings(t)
	require.NoError(t, SaveSettings(&Settings{APIURL: "http://stored:8080", Timeout: "30s"}))
	t.Setenv(envAPIURL, "http://env:8080")
	t.Setenv(envTimeout, "2m")

	r, err := Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, "http://env:8080", r.APIURL)
	assert.Equal(t, FromEnv, r.Sources[KeyAPIURL])
	assert.Equal(t, 2*time.Minute, r.Timeout)
	assert.Equal(t, FromEnv, r.Sources[KeyTimeout])
}

func TestResolve_FlagsOverrideEverything(t *testing.T) {
	useTempSettings(t)
	require.NoError(t, SaveSettings(&Settings{Output: formatJSON, EvalK: 8, EvalDir: "stored-runs"}))
	t.Setenv(envAPIURL, "http://env:8080")

	cmd := rootFlags()
	require.NoError(t, cmd.Flags().Set("api-url", "http://flag:8080/"))
	require.NoError(t, cmd.Flags().Set("api-key", testAPIKey))
	require.NoError(t, cmd.Flags().Set("timeout", "10s"))
	require.NoError(t, cmd.Flags().Set("output", "false"))
	require.NoError(t, cmd.Flags().Set("out-dir", "flag-runs"))
	require.NoError(t, cmd.Flags().Set("k", "2"))

	r, err := Resolve(cmd)
	require.NoError(t, err)
	assert.Equal(t, "http://flag:8080", r.APIURL)
	assert.Equal(t, testAPIKey, r.APIKey)
	assert.Equal(t, 10*time.Second, r.Timeout)
	assert.False(t, r.JSON, "an explicit --output=false beats the stored json preference")
	assert.Equal(t, "flag-runs", r.EvalDir)
	assert.Equal(t, 2, r.EvalK)
	for _, key := range SettingKeys {
		assert.Equal(t, FromFlag, r.Sources[key], key)
	}
}

func TestResolve_RejectsMalformedKey(t *testing.T) {
	useTempSettings(t)
	t.Setenv(envAPIKey, "not-a-key")

	_, err := Resolve(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
	assert.Contains(t, err.Error(), string(FromEnv))
}

func TestResolve_RejectsBadTimeout(t *testing.T) {
	useTempSettings(t)
	t.Setenv(envTimeout, "forever")

	_, err := Resolve(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid timeout")
}

func TestConfigCmd_SetShowUnset(t *testing.T) {
	path := useTempSettings(t)

	run := func(args ...string) string {
		t.Helper()
		cmd := ConfigCmd()
		cmd.PersistentFlags().AddFlagSet(rootFlags().Flags())
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs(args)
		require.NoError(t, cmd.Execute())
		return out.String()
	}

	run("set", "eval_k", "7")
	run("set", "api_key", testAPIKey)

	out := run("show")
	assert.Contains(t, out, "eval_k")
	assert.Contains(t, out, "7  (config)")
	assert.Contains(t, out, maskAPIKey(testAPIKey))
	assert.NotContains(t, out, testAPIKey)

	out = run("show", "--output")
	var entries []resolvedSetting
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, len(SettingKeys))
	assert.Equal(t, KeyAPIURL, entries[0].Key)
	assert.Equal(t, FromDefault, entries[0].Source)

	run("unset", "eval_k")
	run("unset", "api_key")
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "unsetting the last value removes the file")
}

func TestConfigCmd_SetRejectsUnknownKey(t *testing.T) {
	useTempSettings(t)

	cmd := ConfigCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"set", "colour", "blue"})
	assert.Error(t, cmd.Execute())
}
