//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imagehoster/server/config"
	"github.com/imagehoster/server/internal/db"
	"github.com/imagehoster/server/internal/server"
)

const (
	serverPort = 18080

	// 1x1 transparent PNG.
	pngBase64 = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="
)

var baseURL = fmt.Sprintf("http://localhost:%d", serverPort)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	if err := dockerCompose(ctx, root, "up", "-d"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}
	teardown := func() {
		_ = dockerCompose(context.Background(), root, "down", "-v")
	}

	setEnv()
	cfg := config.LoadConfig()

	if err := waitForPostgres(ctx, cfg.Database); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		teardown()
		os.Exit(1)
	}

	if err := db.MigrateUp(cfg.Database); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		teardown()
		os.Exit(1)
	}

	srv, err := server.New(context.Background(), cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		teardown()
		os.Exit(1)
	}
	go func() {
		_ = srv.Start()
	}()

	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown(context.Background())
		teardown()
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown(context.Background())
	teardown()
	os.Exit(code)
}

func TestImageLifecycle(t *testing.T) {
	client := newClient(t)

	resp := postForm(t, client, "/signup", url.Values{"username": {"alice"}, "password": {"password123"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	resp = postImage(t, client, "/upload", map[string]string{
		"title":       "sunset",
		"description": "over the bay",
		"tags":        "nature, evening",
	}, true)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/images/sunset", resp.Header.Get("Location"))
	assert.Equal(t, 0, viewCount(t, "sunset"))

	status, body := get(t, client, "/images/sunset")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `<strong class="owner">alice</strong>`)
	assert.Contains(t, body, `href="/tags/nature"`)
	assert.Contains(t, body, `href="/tags/evening"`)
	assert.Equal(t, 1, viewCount(t, "sunset"))

	resp = postImage(t, client, "/editImage", map[string]string{
		"title":       "sunset",
		"description": "new desc",
		"tags":        "evening",
	}, false)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	status, body = get(t, client, "/images/sunset")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "new desc")
	assert.Contains(t, body, `href="/tags/evening"`)
	assert.NotContains(t, body, `href="/tags/nature"`)
	assert.Equal(t, 2, viewCount(t, "sunset"))

	resp = postForm(t, client, "/images/sunset/delete", nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	status, _ = get(t, client, "/images/sunset")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSignInRejectsWrongPassword(t *testing.T) {
	client := newClient(t)

	resp := postForm(t, client, "/signup", url.Values{"username": {"bob"}, "password": {"hunter22"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	other := newClient(t)
	resp = postForm(t, other, "/signin", url.Values{"username": {"bob"}, "password": {"hunter23"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = postForm(t, other, "/signin", url.Values{"username": {"bob"}, "password": {"hunter22"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func setEnv() {
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("SESSION_SECRET", "test-secret")
	_ = os.Setenv("DB_DRIVER", "postgres")
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "imagehoster")
	_ = os.Setenv("DB_PASSWORD", "password")
	_ = os.Setenv("DB_NAME", "imagehoster")
	_ = os.Setenv("DB_USE_SSL", "false")
	_ = os.Setenv("REDIS_ADDR", "localhost:6379")
	_ = os.Setenv("LOG_FILE", "")
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar:     jar,
		Timeout: 10 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func get(t *testing.T, client *http.Client, path string) (int, string) {
	t.Helper()
	resp, err := client.Get(baseURL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func postForm(t *testing.T, client *http.Client, path string, values url.Values) *http.Response {
	t.Helper()
	resp, err := client.PostForm(baseURL+path, values)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp
}

func postImage(t *testing.T, client *http.Client, path string, fields map[string]string, withFile bool) *http.Response {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if withFile {
		data, err := base64.StdEncoding.DecodeString(pngBase64)
		require.NoError(t, err)
		part, err := writer.CreateFormFile("file", "sunset.png")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req, err := http.NewRequest(http.MethodPost, baseURL+path, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp, err := client.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp
}

func viewCount(t *testing.T, title string) int {
	t.Helper()
	conn, err := sql.Open("postgres", db.PostgresURL(config.LoadConfig().Database))
	require.NoError(t, err)
	defer conn.Close()

	var count int
	err = conn.QueryRow("SELECT view_count FROM image WHERE title = $1", title).Scan(&count)
	require.NoError(t, err)
	return count
}

func waitForPostgres(ctx context.Context, cfg config.DatabaseConfig) error {
	conn, err := sql.Open("postgres", db.PostgresURL(cfg))
	if err != nil {
		return err
	}
	defer conn.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := conn.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
