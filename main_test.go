// Copyright 2013 Dmitry Chestnykh. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dchest/minibundle/host"
)

func TestScanArgs(t *testing.T) {
	tests := []struct {
		args    []string
		command string
		level   string
	}{
		{nil, "", ""},
		{[]string{"bundle"}, "bundle", ""},
		{[]string{"bundle", "--no-compress"}, "bundle", ""},
		{[]string{"-C", "project", "bundle"}, "bundle", ""},
		{[]string{"--dir=project", "--log-level", "debug", "clean"}, "clean", "debug"},
		{[]string{"--log-level=warn", "-c", "bundle", "version"}, "version", "warn"},
		{[]string{"--help"}, "", ""},
		{[]string{"--", "bundle"}, "bundle", ""},
	}
	for _, tt := range tests {
		command, level := scanArgs(tt.args)
		assert.Equal(t, tt.command, command, "%q", tt.args)
		assert.Equal(t, tt.level, level, "%q", tt.args)
	}
}

func newTestProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"src/index.js": "export function main(value) {\n\tconst result = value * 2;\n\tconsole.log(\"result:\", result);\n\treturn result;\n}\n",
		host.ConfigFileName: "entries: [src/index.js]\n",
	}
	for name, content := range files {
		filename := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(filename), 0755))
		require.NoError(t, os.WriteFile(filename, []byte(content), 0644))
	}
	return dir
}

func runTest(t *testing.T, env map[string]string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	getenv := func(key string) string { return env[key] }
	err := run(context.Background(), append([]string{"minibundle"}, args...), getenv, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func readOutput(t *testing.T, dir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "dist", "index.js"))
	require.NoError(t, err)
	return string(data)
}

const unminified = `console.log("result:", result)`

func TestBundleCompress(t *testing.T) {
	dir := newTestProject(t)
	_, logs, err := runTest(t, nil, "-C", dir, "bundle")
	require.NoError(t, err)
	assert.NotContains(t, readOutput(t, dir), unminified)
	assert.Contains(t, logs, "No local terser config found")
}

func TestBundleNoCompress(t *testing.T) {
	dir := newTestProject(t)
	_, logs, err := runTest(t, nil, "-C", dir, "bundle", "--no-compress")
	require.NoError(t, err)
	assert.Contains(t, readOutput(t, dir), unminified)
	assert.NotContains(t, logs, "terser")
}

func TestBundleCompressFromEnv(t *testing.T) {
	env := map[string]string{"MINIBUNDLE_COMPRESS": "false"}

	dir := newTestProject(t)
	_, _, err := runTest(t, env, "-C", dir, "bundle")
	require.NoError(t, err)
	assert.Contains(t, readOutput(t, dir), unminified)

	// Flag wins over environment.
	dir = newTestProject(t)
	_, _, err = runTest(t, env, "-C", dir, "bundle", "--compress")
	require.NoError(t, err)
	assert.NotContains(t, readOutput(t, dir), unminified)
}

func TestBundleLocalConfig(t *testing.T) {
	dir := newTestProject(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".terserrc.json"), []byte(`{"compress": {"drop_console": true}}`), 0644))

	_, logs, err := runTest(t, nil, "-C", dir, "bundle")
	require.NoError(t, err)
	assert.NotContains(t, readOutput(t, dir), "console.log")
	assert.Contains(t, logs, "Using local terser config")

	_, logs, err = runTest(t, nil, "-C", dir, "bundle", "--ignore-local-config")
	require.NoError(t, err)
	assert.Contains(t, readOutput(t, dir), "console.log")
	assert.NotContains(t, logs, "Using local terser config")
}

func TestCompressOnlyForBundle(t *testing.T) {
	dir := newTestProject(t)
	_, _, err := runTest(t, nil, "-C", dir, "clean", "--no-compress")
	assert.Error(t, err)
}

func TestClean(t *testing.T) {
	dir := newTestProject(t)
	_, _, err := runTest(t, nil, "-C", dir, "bundle")
	require.NoError(t, err)

	_, _, err = runTest(t, nil, "-C", dir, "clean")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "dist"))
	assert.True(t, os.IsNotExist(err))
}

func TestVersion(t *testing.T) {
	out, _, err := runTest(t, nil, "version")
	require.NoError(t, err)
	assert.Equal(t, "minibundle version dev\n", out)
}

func TestLogLevel(t *testing.T) {
	dir := newTestProject(t)
	_, logs, err := runTest(t, map[string]string{"MINIBUNDLE_LOG_LEVEL": "error"}, "-C", dir, "bundle")
	require.NoError(t, err)
	assert.Empty(t, logs)

	_, logs, err = runTest(t, nil, "--log-level", "debug", "-C", dir, "bundle")
	require.NoError(t, err)
	assert.Contains(t, logs, "Loading plugin")
}
