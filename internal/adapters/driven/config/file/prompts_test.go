package file

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/intertext-cli/internal/core/domain"
	"github.com/custodia-labs/intertext-cli/internal/core/ports/driven"
)

func TestNewPromptStore_WithCustomDir(t *testing.T) {
	dir := t.TempDir()

	store, err := NewPromptStore(dir)

	require.NoError(t, err)
	assert.Equal(t, dir, store.Dir())
}

func TestNewPromptStore_DefaultDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv(HomeEnv, home)

	store, err := NewPromptStore("")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "prompts"), store.Dir())
	_, err = os.Stat(store.Dir())
	assert.True(t, os.IsNotExist(err), "constructor must not touch the filesystem")
}

func TestPromptStore_Load_CreatesDefaultFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	_, err = store.Load(driven.PromptAnalysis)
	require.NoError(t, err)

	for _, f := range []string{"analysis.txt", "scholar.txt", "close_reader.txt", "skeptic.txt", "README.md"} {
		_, err := os.Stat(filepath.Join(dir, f))
		assert.NoError(t, err, "expected file %s to exist", f)
	}
}

func TestPromptStore_Load_Defaults(t *testing.T) {
	store, err := NewPromptStore(t.TempDir())
	require.NoError(t, err)

	tests := []struct {
		name     string
		contains string
	}{
		{driven.PromptAnalysis, "{{.PassageText}}"},
		{driven.PromptSystemScholar, "literary scholar"},
		{driven.PromptSystemCloseReader, "close reader"},
		{driven.PromptSystemSkeptic, "skeptical"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prompt, err := store.Load(tt.name)
			require.NoError(t, err)
			assert.Contains(t, prompt, tt.contains)
			assert.Equal(t, defaultPrompts[tt.name], prompt)
		})
	}
}

func TestPromptStore_Load_CustomContent(t *testing.T) {
	dir := t.TempDir()
	custom := "You are a classicist who distrusts modernists."
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scholar.txt"), []byte("  "+custom+"\n\n"), 0600))

	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	prompt, err := store.Load(driven.PromptSystemScholar)
	require.NoError(t, err)
	assert.Equal(t, custom, prompt, "existing files are kept and trimmed")
}

func TestPromptStore_Load_UserDefinedPrompt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "formalist.txt"), []byte("Attend only to form."), 0600))

	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	prompt, err := store.Load("formalist")
	require.NoError(t, err)
	assert.Equal(t, "Attend only to form.", prompt)
}

func TestPromptStore_Load_FallsBackToDefault(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	_, err = store.Load(driven.PromptAnalysis)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, "skeptic.txt")))

	prompt, err := store.Load(driven.PromptSystemSkeptic)
	require.NoError(t, err)
	assert.Equal(t, defaultPrompts[driven.PromptSystemSkeptic], prompt)
}

func TestPromptStore_Load_Unknown(t *testing.T) {
	store, err := NewPromptStore(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"nonexistent", "../scholar", ""} {
		_, err := store.Load(name)
		assert.ErrorIs(t, err, domain.ErrNotFound, "name %q", name)
	}
}

func TestPromptStore_List(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "formalist.txt"), []byte("x"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("x"), 0600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "drafts.txt"), 0700))

	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	names, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"analysis", "close_reader", "formalist", "scholar", "skeptic"}, names)
}

func TestPromptStore_Reload_ClearsCache(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	first, err := store.Load(driven.PromptSystemScholar)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "scholar.txt"), []byte("edited"), 0600))

	cached, err := store.Load(driven.PromptSystemScholar)
	require.NoError(t, err)
	assert.Equal(t, first, cached)

	store.Reload()

	fresh, err := store.Load(driven.PromptSystemScholar)
	require.NoError(t, err)
	assert.Equal(t, "edited", fresh)
}

func TestPromptStore_Watch(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	_, err = store.Load(driven.PromptSystemSkeptic)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	changed := make(chan string, 16)
	done, err := store.Watch(ctx, func(name string) { changed <- name })
	require.NoError(t, err)

	// Replace atomically so no event observes a half-written file.
	tmp := filepath.Join(dir, "skeptic.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("Doubt everything."), 0600))
	require.NoError(t, os.Rename(tmp, filepath.Join(dir, "skeptic.txt")))

	select {
	case name := <-changed:
		assert.Equal(t, driven.PromptSystemSkeptic, name)
	case <-time.After(5 * time.Second):
		t.Fatal("no change event received")
	}

	assert.Eventually(t, func() bool {
		prompt, err := store.Load(driven.PromptSystemSkeptic)
		return err == nil && prompt == "Doubt everything."
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestPromptStore_Load_ConcurrentAccess(t *testing.T) {
	store, err := NewPromptStore(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%10 == 0 {
				store.Reload()
			}
			if _, err := store.Load(driven.PromptAnalysis); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestPromptStore_DoesNotOverwriteExistingReadme(t *testing.T) {
	dir := t.TempDir()
	readme := filepath.Join(dir, "README.md")
	require.NoError(t, os.WriteFile(readme, []byte("mine"), 0600))

	store, err := NewPromptStore(dir)
	require.NoError(t, err)
	_, err = store.Load(driven.PromptAnalysis)
	require.NoError(t, err)

	data, err := os.ReadFile(readme)
	require.NoError(t, err)
	assert.Equal(t, "mine", string(data))
}
