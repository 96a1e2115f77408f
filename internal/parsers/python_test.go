package parsers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pySample = `import os
from .util import helper, other as o

def main(a, b):
    x = helper(a)
    return x

def _private():
    pass

class Thing:
    def method(self, value):
        return value
`

func TestPythonParser_Parse(t *testing.T) {
	t.Parallel()

	p := NewPythonParser()
	assert.Equal(t, "python", p.Language())

	record, err := p.Parse("/proj/pkg/mod.py", []byte(pySample))
	require.NoError(t, err)

	t.Run("Imports", func(t *testing.T) {
		t.Parallel()
		require.Len(t, record.Imports, 3)

		assert.Equal(t, ImportInfo{Source: "os", Imported: "*", Line: 0}, record.Imports[0])
		assert.Equal(t, ImportInfo{Source: "/proj/pkg/util", Imported: "helper", Line: 1}, record.Imports[1])
		assert.Equal(t, ImportInfo{Source: "/proj/pkg/util", Imported: "other", Local: "o", Line: 1}, record.Imports[2])
	})

	t.Run("Functions", func(t *testing.T) {
		t.Parallel()
		require.Len(t, record.Functions, 3)

		main := record.Functions[0]
		assert.Equal(t, "main", main.Name)
		assert.Equal(t, KindFunction, main.Kind)
		assert.Equal(t, 3, main.Line)
		assert.Equal(t, 5, main.EndLine)
		assert.Equal(t, []string{"a", "b"}, main.Params)

		assert.Equal(t, "_private", record.Functions[1].Name)
		assert.Equal(t, 8, record.Functions[1].EndLine)

		method := record.Functions[2]
		assert.Equal(t, "method", method.Name)
		assert.Equal(t, KindMethod, method.Kind)
		assert.Equal(t, 11, method.Line)
		assert.Equal(t, 12, method.EndLine)
		assert.Equal(t, []string{"value"}, method.Params, "self must be dropped")
	})

	t.Run("Exports", func(t *testing.T) {
		t.Parallel()
		// Module-level defs without a leading underscore; methods and
		// private helpers stay out.
		require.Len(t, record.Exports, 1)
		assert.Equal(t, ExportInfo{Name: "main", Kind: "function", Line: 3}, record.Exports[0])
	})

	t.Run("Calls", func(t *testing.T) {
		t.Parallel()
		require.Len(t, record.Calls, 1)
		assert.Equal(t, CallInfo{Name: "helper", Line: 4}, record.Calls[0])
	})
}

func TestPythonParser_RelativeImports(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		src    string
		source string
	}{
		{"SingleDot", "from .models import User", "/proj/a/b/models"},
		{"DoubleDot", "from ..models import User", "/proj/a/models"},
		{"DotOnly", "from . import sibling", "/proj/a/b"},
		{"Absolute", "from django.db import models", "django.db"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			record, err := NewPythonParser().Parse("/proj/a/b/c.py", []byte(tc.src))
			require.NoError(t, err)
			require.Len(t, record.Imports, 1)
			assert.Equal(t, tc.source, record.Imports[0].Source)
		})
	}
}

func TestPythonParser_AsyncAndLambda(t *testing.T) {
	t.Parallel()

	src := strings.Join([]string{
		"async def fetch(url, timeout=5):", // 0
		"    return await get(url)",        // 1
		"",                                 // 2
		"square = lambda x: x * x",         // 3
	}, "\n")

	record, err := NewPythonParser().Parse("/proj/io.py", []byte(src))
	require.NoError(t, err)

	require.Len(t, record.Functions, 2)

	fetch := record.Functions[0]
	assert.Equal(t, "fetch", fetch.Name)
	assert.Equal(t, KindFunction, fetch.Kind)
	assert.Equal(t, []string{"url", "timeout"}, fetch.Params, "default values must be dropped")
	assert.Equal(t, 1, fetch.EndLine)

	square := record.Functions[1]
	assert.Equal(t, "square", square.Name)
	assert.Equal(t, KindVariable, square.Kind)
	assert.Equal(t, 3, square.EndLine)

	require.Len(t, record.Calls, 1)
	assert.Equal(t, CallInfo{Name: "get", Line: 1}, record.Calls[0])
}

func TestLanguageForFile(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"app.js":     "javascript",
		"view.jsx":   "javascript",
		"main.ts":    "typescript",
		"panel.tsx":  "typescript",
		"handler.py": "python",
		"readme.md":  "",
		"vector.go":  "",
	}
	for file, want := range cases {
		assert.Equal(t, want, LanguageForFile(file), file)
	}
}

func TestForLanguage(t *testing.T) {
	t.Parallel()

	for _, lang := range []string{"javascript", "typescript", "python"} {
		p := ForLanguage(lang)
		require.NotNil(t, p)
		assert.Equal(t, lang, p.Language())
	}

	assert.Nil(t, ForLanguage("cobol"))
}
