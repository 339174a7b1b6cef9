package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/cloo-solutions/regassist/internal/service"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	envAPIKey  = "REGASSIST_API_KEY"
	envAPIURL  = "REGASSIST_API_URL"
	envTimeout = "REGASSIST_TIMEOUT"

	defaultAPIURL = "http://localhost:8080"

	// Local generation can take well over a minute on CPU.
	defaultTimeout = 3 * time.Minute

	defaultEvalDir = "evaluation"
	defaultEvalK   = 5

	formatText = "text"
	formatJSON = "json"
)

// Setting keys accepted by "regassist config set".
const (
	KeyAPIURL  = "api_url"
	KeyAPIKey  = "api_key"
	KeyTimeout = "timeout"
	KeyOutput  = "output"
	KeyEvalDir = "eval_dir"
	KeyEvalK   = "eval_k"
)

// SettingKeys lists every stored setting in display order.
var SettingKeys = []string{KeyAPIURL, KeyAPIKey, KeyTimeout, KeyOutput, KeyEvalDir, KeyEvalK}

// Settings are the client preferences kept in config.json. Every field is
// optional; unset fields fall back to the environment and then to defaults.
type Settings struct {
	APIURL  string `json:"api_url,omitempty"`
	APIKey  string `json:"api_key,omitempty"`
	Timeout string `json:"timeout,omitempty"`
	Output  string `json:"output,omitempty"`
	EvalDir string `json:"eval_dir,omitempty"`
	EvalK   int    `json:"eval_k,omitempty"`
}

var settingsPathFunc = defaultSettingsPath

func defaultSettingsPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "regassist", "config.json"), nil
}

// SettingsPath returns where the settings file lives.
func SettingsPath() (string, error) {
	return settingsPathFunc()
}

// LoadSettings reads the settings file. A missing file yields empty settings.
func LoadSettings() (*Settings, error) {
	path, err := SettingsPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Settings{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &s, nil
}

// SaveSettings replaces the settings file. The file may hold an API key, so it
// is written 0600. Saving empty settings removes the file.
func SaveSettings(s *Settings) error {
	if s == nil {
		return fmt.Errorf("settings cannot be nil")
	}
	path, err := SettingsPath()
	if err != nil {
		return err
	}

	if *s == (Settings{}) {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}

// Get returns the stored value of key as text, "" when unset.
func (s *Settings) Get(key string) (string, error) {
	switch key {
	case KeyAPIURL:
		return s.APIURL, nil
	case KeyAPIKey:
		return s.APIKey, nil
	case KeyTimeout:
		return s.Timeout, nil
	case KeyOutput:
		return s.Output, nil
	case KeyEvalDir:
		return s.EvalDir, nil
	case KeyEvalK:
		if s.EvalK == 0 {
			return "", nil
		}
		return strconv.Itoa(s.EvalK), nil
	default:
		return "", unknownKey(key)
	}
}

// Set validates value and stores it under key. An empty value unsets the key.
func (s *Settings) Set(key, value string) error {
	value = strings.TrimSpace(value)
	switch key {
	case KeyAPIURL:
		s.APIURL = strings.TrimRight(value, "/")
	case KeyAPIKey:
		if value != "" && !IsValidAPIKey(value) {
			return fmt.Errorf("invalid API key format (expected: rga_ + 64 hex characters)")
		}
		s.APIKey = value
	case KeyTimeout:
		if value != "" {
			d, err := time.ParseDuration(value)
			if err != nil || d <= 0 {
				return fmt.Errorf("timeout must be a positive duration such as 90s or 5m")
			}
		}
		s.Timeout = value
	case KeyOutput:
		if value != "" && value != formatText && value != formatJSON {
			return fmt.Errorf("output must be %q or %q", formatText, formatJSON)
		}
		s.Output = value
	case KeyEvalDir:
		s.EvalDir = value
	case KeyEvalK:
		if value == "" {
			s.EvalK = 0
			return nil
		}
		k, err := strconv.Atoi(value)
		if err != nil || k <= 0 {
			return fmt.Errorf("eval_k must be a positive integer")
		}
		s.EvalK = k
	default:
		return unknownKey(key)
	}
	return nil
}

func unknownKey(key string) error {
	return fmt.Errorf("unknown setting %q (known: %s)", key, strings.Join(SettingKeys, ", "))
}

// IsValidAPIKey reports whether key has the rga_ + 64 hex form the server
// issues.
func IsValidAPIKey(key string) bool {
	return service.IsValidAPIToken(key)
}

// ValueSource names where a resolved setting came from.
type ValueSource string

const (
	FromFlag    ValueSource = "flag"
	FromEnv     ValueSource = "env"
	FromFile    ValueSource = "config"
	FromDefault ValueSource = "default"
)

// Resolved holds the effective client settings of one command run.
type Resolved struct {
	APIURL  string
	APIKey  string
	Timeout time.Duration
	JSON    bool
	EvalDir string
	EvalK   int

	Sources map[string]ValueSource
}

// Resolve merges settings in the order flag, environment (including a .env
// file), settings file, default. cmd may be nil.
func Resolve(cmd *cobra.Command) (*Resolved, error) {
	_ = godotenv.Load()

	stored, err := LoadSettings()
	if err != nil {
		return nil, err
	}

	r := &Resolved{Sources: make(map[string]ValueSource, len(SettingKeys))}

	r.APIURL = r.pick(KeyAPIURL, stringFlag(cmd, "api-url"), os.Getenv(envAPIURL), stored.APIURL, defaultAPIURL)
	r.APIURL = strings.TrimRight(r.APIURL, "/")

	r.APIKey = r.pick(KeyAPIKey, stringFlag(cmd, "api-key"), os.Getenv(envAPIKey), stored.APIKey, "")
	if r.APIKey != "" && !IsValidAPIKey(r.APIKey) {
		return nil, fmt.Errorf("API key from %s has an invalid format (expected rga_ + 64 hex characters)", r.Sources[KeyAPIKey])
	}

	var flagTimeout string
	if cmd != nil {
		if d, err := cmd.Flags().GetDuration("timeout"); err == nil && d > 0 {
			flagTimeout = d.String()
		}
	}
	timeout := r.pick(KeyTimeout, flagTimeout, os.Getenv(envTimeout), stored.Timeout, defaultTimeout.String())
	r.Timeout, err = time.ParseDuration(timeout)
	if err != nil || r.Timeout <= 0 {
		return nil, fmt.Errorf("invalid timeout %q from %s", timeout, r.Sources[KeyTimeout])
	}

	var flagOutput string
	if cmd != nil && cmd.Flags().Changed("output") {
		if b, err := cmd.Flags().GetBool("output"); err == nil {
			flagOutput = formatText
			if b {
				flagOutput = formatJSON
			}
		}
	}
	r.JSON = r.pick(KeyOutput, flagOutput, "", stored.Output, formatText) == formatJSON

	r.EvalDir = r.pick(KeyEvalDir, stringFlag(cmd, "out-dir"), "", stored.EvalDir, defaultEvalDir)

	var flagK, storedK string
	if cmd != nil {
		if k, err := cmd.Flags().GetInt("k"); err == nil && k > 0 {
			flagK = strconv.Itoa(k)
		}
	}
	if stored.EvalK > 0 {
		storedK = strconv.Itoa(stored.EvalK)
	}
	r.EvalK, _ = strconv.Atoi(r.pick(KeyEvalK, flagK, "", storedK, strconv.Itoa(defaultEvalK)))

	return r, nil
}

func (r *Resolved) pick(key, flag, env, stored, def string) string {
	switch {
	case flag != "":
		r.Sources[key] = FromFlag
		return flag
	case env != "":
		r.Sources[key] = FromEnv
		return env
	case stored != "":
		r.Sources[key] = FromFile
		return stored
	default:
		r.Sources[key] = FromDefault
		return def
	}
}

func stringFlag(cmd *cobra.Command, name string) string {
	if cmd == nil {
		return ""
	}
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(v)
}

// ConfigCmd creates the config command for inspecting and editing stored
// settings.
func ConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change stored client settings",
		Long: `Show or change the settings kept in the user config directory.

Keys: api_url, api_key, timeout, output (text|json), eval_dir, eval_k.
Flags and REGASSIST_API_URL / REGASSIST_API_KEY / REGASSIST_TIMEOUT take
precedence over stored values.`,
		Example: `  regassist config set api_url http://regassist.internal:8080
  regassist config set eval_k 10
  regassist config show --output`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective settings and where each comes from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := Resolve(cmd)
			if err != nil {
				return err
			}
			return printResolved(cmd, r)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateSetting(args[0], args[1])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "unset <key>",
		Short: "Remove a stored setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateSetting(args[0], "")
		},
	})

	return cmd
}

func updateSetting(key, value string) error {
	s, err := LoadSettings()
	if err != nil {
		return err
	}
	if err := s.Set(key, value); err != nil {
		return err
	}
	return SaveSettings(s)
}

type resolvedSetting struct {
	Key    string      `json:"key"`
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
}

func (r *Resolved) entries() []resolvedSetting {
	output := formatText
	if r.JSON {
		output = formatJSON
	}
	key := "(none)"
	if r.APIKey != "" {
		key = maskAPIKey(r.APIKey)
	}
	values := map[string]string{
		KeyAPIURL:  r.APIURL,
		KeyAPIKey:  key,
		KeyTimeout: r.Timeout.String(),
		KeyOutput:  output,
		KeyEvalDir: r.EvalDir,
		KeyEvalK:   strconv.Itoa(r.EvalK),
	}

	out := make([]resolvedSetting, 0, len(SettingKeys))
	for _, k := range SettingKeys {
		out = append(out, resolvedSetting{Key: k, Value: values[k], Source: r.Sources[k]})
	}
	return out
}

func printResolved(cmd *cobra.Command, r *Resolved) error {
	w := cmd.OutOrStdout()
	entries := r.entries()
	if r.JSON {
		return writeJSON(w, entries)
	}

	width := len(slices.MaxFunc(SettingKeys, func(a, b string) int { return len(a) - len(b) }))
	for _, e := range entries {
		fmt.Fprintf(w, "%-*s  %s  (%s)\n", width, e.Key, e.Value, e.Source)
	}
	return nil
}
