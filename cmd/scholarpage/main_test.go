package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeContent(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"config.json":        `{"availableLanguages":["en","zh"],"defaultLanguage":"en"}`,
		"en/info_en.json":    `{"name":"Ada Lovelace"}`,
		"en/intro_en.txt":    "Hello.",
		"en/patents_en.json": `[{"title":"Analytical Engine","number":"GB-1"}]`,
		"zh/info_zh.json":    `{"name":"阿达"}`,
		"zh/intro_zh.txt":    "你好。",
	}
	for name, data := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	}
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "none.yaml")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "scholarpage dev\n", out)
}

func TestCheck(t *testing.T) {
	dir := writeContent(t)
	out, err := run(t, "--content", dir, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "en: ")
	assert.Contains(t, out, "news (news_en.json)")
	assert.Contains(t, out, "zh: ")
}

func TestCheck_EmptyLanguage(t *testing.T) {
	dir := writeContent(t)
	require.NoError(t, os.RemoveAll(filepath.Join(dir, "zh")))

	out, err := run(t, "--content", dir, "check")
	assert.ErrorIs(t, err, errNoContent)
	assert.Contains(t, out, "zh: no content")
}

func TestRender_ToFile(t *testing.T) {
	dir := writeContent(t)
	target := filepath.Join(t.TempDir(), "page.html")

	_, err := run(t, "--content", dir, "render", "--lang", "zh", "-o", target)
	require.NoError(t, err)
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(strings.ToLower(string(data)), "<!doctype html>"))
	assert.Contains(t, string(data), `lang="zh"`)
	assert.Contains(t, string(data), "你好")
}

func TestRender_Stdout(t *testing.T) {
	dir := writeContent(t)
	out, err := run(t, "--content", dir, "render", "--section", "publications", "--tab", "patent")
	require.NoError(t, err)
	assert.Contains(t, out, "Analytical Engine")
}

func TestRender_BadLanguage(t *testing.T) {
	dir := writeContent(t)
	_, err := run(t, "--content", dir, "render", "--lang", "fr")
	assert.Error(t, err)
}

func TestInvalidConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "scholarpage.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("log:\n  format: xml\n"), 0o644))

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", cfgPath, "check"})
	assert.Error(t, cmd.Execute())
}
