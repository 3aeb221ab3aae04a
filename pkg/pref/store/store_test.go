package store

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/datatable/internal/config"
	"github.com/vango-dev/datatable/internal/errors"
	"github.com/vango-dev/datatable/pkg/pref"
)

// exerciseRaw runs the RawStorage contract against a backend.
func exerciseRaw(t *testing.T, raw pref.RawStorage) {
	t.Helper()
	ctx := context.Background()

	got, err := raw.Get(ctx, "users.density")
	require.NoError(t, err)
	require.Nil(t, got, "absent key should read as nil")

	require.NoError(t, raw.Set(ctx, "users.density", []byte(`{"schemaVersion":1,"updatedAt":1,"value":"compact"}`)))
	got, err = raw.Get(ctx, "users.density")
	require.NoError(t, err)
	require.JSONEq(t, `{"schemaVersion":1,"updatedAt":1,"value":"compact"}`, string(got))

	require.NoError(t, raw.Set(ctx, "users.density", []byte(`{"schemaVersion":1,"updatedAt":2,"value":"standard"}`)))
	got, err = raw.Get(ctx, "users.density")
	require.NoError(t, err)
	require.Contains(t, string(got), "standard")

	require.NoError(t, raw.Remove(ctx, "users.density"))
	got, err = raw.Get(ctx, "users.density")
	require.NoError(t, err)
	require.Nil(t, got)

	require.NoError(t, raw.Remove(ctx, "never-written"), "removing an absent key is not an error")
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	exerciseRaw(t, m)

	t.Run("copies on write and read", func(t *testing.T) {
		data := []byte(`{"value":1}`)
		require.NoError(t, m.Set(context.Background(), "k", data))
		data[0] = 'X'

		got, err := m.GetSync("k")
		require.NoError(t, err)
		require.Equal(t, `{"value":1}`, string(got))
		require.ElementsMatch(t, []string{"k"}, m.Keys())
	})

	t.Run("closed", func(t *testing.T) {
		require.NoError(t, m.Close())
		_, err := m.Get(context.Background(), "k")
		require.True(t, errors.HasCode(err, "DT014"), "got %v", err)
		require.Error(t, m.Set(context.Background(), "k", nil))
	})
}

func TestFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "prefs")
	f, err := NewFile(dir)
	require.NoError(t, err)
	exerciseRaw(t, f)

	t.Run("keys are escaped into file names", func(t *testing.T) {
		require.NoError(t, f.Set(context.Background(), "admin/users:cols", []byte(`{}`)))
		_, err := os.Stat(filepath.Join(dir, "admin%2Fusers:cols.json"))
		require.NoError(t, err)
	})

	t.Run("hand-edited files with comments", func(t *testing.T) {
		edited := "{\n  // widened by hand\n  \"schemaVersion\": 1,\n  \"updatedAt\": 5,\n  \"value\": {\"email\": 240,},\n}\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, "users.sizing.json"), []byte(edited), 0o644))

		env, err := pref.JSON[map[string]int](f).Get(context.Background(), "users.sizing")
		require.NoError(t, err)
		require.NotNil(t, env)
		require.Equal(t, 240, env.Value["email"])
	})

	t.Run("empty file reads as absent", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "blank.json"), []byte("  \n"), 0o644))
		got, err := f.GetSync("blank")
		require.NoError(t, err)
		require.Nil(t, got)
	})
}

func TestWithPrefix(t *testing.T) {
	m := NewMemory()
	raw := WithPrefix(m, "admin:")
	exerciseRaw(t, raw)

	require.NoError(t, raw.Set(context.Background(), "k", []byte("1")))
	require.ElementsMatch(t, []string{"admin:k"}, m.Keys())

	_, ok := raw.(pref.SyncRawStorage)
	require.True(t, ok, "prefixing a sync store keeps synchronous reads")
	require.Same(t, m, WithPrefix(m, ""), "empty prefix returns the store unchanged")
}

func TestHTTP(t *testing.T) {
	var (
		mu   sync.Mutex
		docs = map[string][]byte{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, "/prefs/")
		mu.Lock()
		defer mu.Unlock()
		switch r.Method {
		case http.MethodGet:
			data, ok := docs[key]
			if !ok {
				http.NotFound(w, r)
				return
			}
			w.Write(data)
		case http.MethodPut:
			data, _ := io.ReadAll(r.Body)
			docs[key] = data
			w.WriteHeader(http.StatusNoContent)
		case http.MethodDelete:
			delete(docs, key)
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	exerciseRaw(t, NewHTTP(srv.URL+"/prefs/", nil))

	t.Run("server errors surface", func(t *testing.T) {
		failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "database down", http.StatusInternalServerError)
		}))
		defer failing.Close()

		_, err := NewHTTP(failing.URL, nil).Get(context.Background(), "k")
		require.ErrorContains(t, err, "database down")
	})
}

type fakeRow struct {
	data []byte
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*[]byte) = r.data
	return nil
}

// fakePgx interprets the three statements Postgres issues.
type fakePgx struct {
	rows    map[string][]byte
	queries []string
}

func (f *fakePgx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.queries = append(f.queries, sql)
	switch {
	case strings.Contains(sql, "INSERT INTO"):
		f.rows[args[0].(string)] = args[1].([]byte)
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	case strings.Contains(sql, "DELETE FROM"):
		delete(f.rows, args[0].(string))
		return pgconn.NewCommandTag("DELETE 1"), nil
	}
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func (f *fakePgx) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.queries = append(f.queries, sql)
	data, ok := f.rows[args[0].(string)]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{data: data}
}

func TestPostgres(t *testing.T) {
	db := &fakePgx{rows: map[string][]byte{}}
	pg := NewPostgres(db, WithTable("admin_prefs"))

	require.NoError(t, pg.EnsureSchema(context.Background()))
	exerciseRaw(t, pg)

	for _, q := range db.queries {
		require.Contains(t, q, `"admin_prefs"`, "table name must be quoted in every statement")
	}
}

type fakeS3 struct {
	objects map[string][]byte
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Bucket+"/"+*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, *in.Bucket+"/"+*in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3(t *testing.T) {
	client := &fakeS3{objects: map[string][]byte{}}
	raw := NewS3(client, "prefs-bucket", "tables/")
	exerciseRaw(t, raw)

	require.NoError(t, raw.Set(context.Background(), "users.density", []byte(`{}`)))
	require.Contains(t, client.objects, "prefs-bucket/tables/users.density.json")
}

func TestOpen(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		opened, err := Open(context.Background(), config.StorageConfig{Backend: config.BackendMemory, Prefix: "p:"})
		require.NoError(t, err)
		defer opened.Close()

		_, ok := opened.Raw.(pref.SyncRawStorage)
		require.True(t, ok)
	})

	t.Run("file", func(t *testing.T) {
		opened, err := Open(context.Background(), config.StorageConfig{Backend: config.BackendFile, Dir: t.TempDir()})
		require.NoError(t, err)
		require.NoError(t, opened.Close())
		exerciseRaw(t, opened.Raw)
	})

	t.Run("http", func(t *testing.T) {
		opened, err := Open(context.Background(), config.StorageConfig{Backend: config.BackendHTTP, URL: "http://prefs.internal"})
		require.NoError(t, err)
		_, ok := opened.Raw.(*HTTP)
		require.True(t, ok)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := Open(context.Background(), config.StorageConfig{Backend: "ftp"})
		require.True(t, errors.HasCode(err, "DT031"), "got %v", err)
	})
}
