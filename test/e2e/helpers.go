//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cloo-solutions/regassist/internal/api/handlers"
	"github.com/cloo-solutions/regassist/internal/config"
	"github.com/cloo-solutions/regassist/internal/domain"
	"github.com/cloo-solutions/regassist/internal/indexer"
	"github.com/cloo-solutions/regassist/internal/repository"
	"github.com/cloo-solutions/regassist/internal/retriever"
	"github.com/cloo-solutions/regassist/internal/server"
	"github.com/cloo-solutions/regassist/internal/service"
	"github.com/cloo-solutions/regassist/internal/storage"
	"github.com/cloo-solutions/regassist/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	s3Bucket = "regassist-e2e"
	s3Prefix = "index"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	Pool         *pgxpool.Pool
	S3Store      *storage.S3ArtifactStore
	FileStore    *storage.FileStore
	Manifest     *domain.IndexManifest
	ServerURL    string
	ServerCloser func()
	BinaryDir    string
	APIKeyToken  string
	HTTPClient   *http.Client
}

// SetupE2EEnv starts Postgres and RustFS, builds an index from the test
// corpus into every store and serves it from the Postgres backend.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pool := testutil.StartPostgres(ctx, t)

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        testutil.StartRustFS(ctx, t),
		Region:          testutil.S3Region,
		AccessKeyID:     testutil.S3AccessKey,
		SecretAccessKey: testutil.S3SecretKey,
		Bucket:          s3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	env := &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		Pool:       pool,
		S3Store:    storage.NewS3ArtifactStore(s3Client, s3Prefix),
		FileStore:  storage.NewFileStore(t.TempDir()),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}

	env.buildIndex()

	token, entry, err := service.GenerateAPIToken()
	if err != nil {
		t.Fatalf("failed to generate API key: %v", err)
	}
	env.APIKeyToken = token

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}
	env.ServerURL, env.ServerCloser = startServer(t, pool, []string{entry}, port)

	return env
}

// Cleanup stops the server and removes the built binaries. The containers
// and the pool are released by the test cleanup.
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

func (e *E2ETestEnv) buildIndex() {
	builder := indexer.NewBuilder(keywordEmbedder{}, indexer.WithBatchSize(2))
	indexing := service.NewIndexingService(builder, e.FileStore,
		service.WithRetention(2),
		service.WithArtifactMirror("s3", e.S3Store),
		service.WithVectorMirror(repository.NewTxRunner(e.Pool), 2),
	)

	manifest, err := indexing.Rebuild(e.Ctx, testCorpus())
	if err != nil {
		e.T.Fatalf("failed to build index: %v", err)
	}
	e.Manifest = manifest
}

// BuildBinaries builds the regassist and regassistd binaries
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "regassist-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	for _, name := range []string{"regassistd", "regassist"} {
		cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, name), "./cmd/"+name)
		cmd.Dir = "../.."
		if out, err := cmd.CombinedOutput(); err != nil {
			e.T.Fatalf("failed to build %s: %v\n%s", name, err, out)
		}
	}
}

// RunRegassist runs the regassist CLI against the test server
func (e *E2ETestEnv) RunRegassist(workDir string, args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "regassist"), args...)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("REGASSIST_API_KEY=%s", e.APIKeyToken),
		fmt.Sprintf("REGASSIST_API_URL=%s", e.ServerURL),
		"HOME="+workDir,
		"XDG_CONFIG_HOME="+filepath.Join(workDir, ".config"),
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// RunRegassistd runs the regassistd CLI with the given environment
func (e *E2ETestEnv) RunRegassistd(workDir string, env map[string]string, args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "regassistd"), args...)
	cmd.Dir = workDir
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// APIResponse represents a standard API response
type APIResponse struct {
	Status int
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error,omitempty"`
	Code   string          `json:"code,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path, authToken string) (*APIResponse, error) {
	return e.doRequest("GET", path, nil, authToken)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}, authToken string) (*APIResponse, error) {
	return e.doRequest("POST", path, body, authToken)
}

// doRequest returns the decoded envelope for every status; only transport
// and decoding failures are errors.
func (e *E2ETestEnv) doRequest(method, path string, body interface{}, authToken string) (*APIResponse, error) {
	url := e.ServerURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}

	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}
	apiResp.Status = resp.StatusCode

	return &apiResp, nil
}

// startServer serves the current Postgres index with answer logging and the
// given API keys.
func startServer(t *testing.T, pool *pgxpool.Pool, apiKeys []string, port int) (string, func()) {
	ctx := context.Background()

	idx, err := repository.NewChunkVectorRepository(pool).OpenCurrent(ctx)
	if err != nil {
		t.Fatalf("failed to open index: %v", err)
	}
	ret := retriever.New(keywordEmbedder{}, idx.Searcher, idx.Mapping, config.BackendPostgres)

	answerSvc, err := service.NewAnswerService(ret, echoGenerator{}, 3,
		service.WithAnswerLog(repository.NewAnswerLogRepository(pool)))
	if err != nil {
		t.Fatalf("failed to create answer service: %v", err)
	}

	auth, err := service.NewStaticKeyAuth(apiKeys)
	if err != nil {
		t.Fatalf("failed to create auth: %v", err)
	}

	manifest := idx.Manifest
	router := server.NewRouter(server.RouterConfig{
		AuthValidator:  auth,
		RequestTimeout: 10 * time.Second,
		HealthHandler: handlers.NewHealthHandler(func() *domain.IndexManifest {
			return &manifest
		}, config.BackendPostgres),
		AnswerHandler: handlers.NewAnswerHandler(answerSvc),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// testCorpus is a small set of regulation sections with distinct vocabulary.
func testCorpus() []domain.Chunk {
	return []domain.Chunk{
		{
			ID: "c-probation", RuleTitle: "آیین‌نامه آموزشی کارشناسی", SectionTitle: "ماده 28",
			ParentSection: "فصل 5", RuleURL: "https://ac.sharif.edu/rules/bsc",
			Content: "دانشجویی که میانگین نمرات او در یک نیمسال کمتر از 12 باشد مشروط تلقی می‌شود.",
		},
		{
			ID: "c-units", RuleTitle: "آیین‌نامه آموزشی کارشناسی", SectionTitle: "ماده 12",
			ParentSection: "فصل 3", RuleURL: "https://ac.sharif.edu/rules/bsc",
			Content: "حداکثر تعداد واحد انتخابی در هر نیمسال 20 واحد است.",
		},
		{
			ID: "c-leave", RuleTitle: "آیین‌نامه مرخصی تحصیلی", SectionTitle: "ماده 3",
			RuleURL: "https://ac.sharif.edu/rules/leave",
			Content: "دانشجو می‌تواند حداکثر دو نیمسال از مرخصی تحصیلی استفاده کند.",
		},
	}
}

// keywordEmbedder maps text onto a fixed set of keyword buckets so that
// retrieval is deterministic without a model.
type keywordEmbedder struct{}

var embedKeywords = []string{"مشروط", "واحد", "مرخصی", "نیمسال", "میانگین", "دانشجو"}

func (keywordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, len(embedKeywords)+1)
		for j, kw := range embedKeywords {
			vec[j] = float32(strings.Count(text, kw))
		}
		vec[len(embedKeywords)] = 0.1
		out[i] = vec
	}
	return out, nil
}

func (keywordEmbedder) ModelName() string { return "keyword-test" }

// echoGenerator answers with the first passage, or abstains when the
// question mentions nothing the index knows about.
type echoGenerator struct{}

func (echoGenerator) Generate(ctx context.Context, query, passages string) (string, error) {
	for _, kw := range embedKeywords {
		if strings.Contains(query, kw) {
			first, _, _ := strings.Cut(passages, service.ContextSeparator)
			return "بر اساس مقررات: " + first, nil
		}
	}
	return domain.AbstentionSentence, nil
}

func (echoGenerator) ModelName() string { return "echo-test" }
