package configfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for ConfigFile:
// - GetFieldValue reads named exports, module.exports, default exports and aliased defaults
// - missing paths return nil without error; non-literals return an error
// - SetFieldValue then GetFieldValue round-trips for every export shape, existing or not
// - SetFieldValue synthesizes intermediate objects and preserves untouched text
// - inserted strings follow the majority quote style
// - RemoveField and AppendValueToArray edit in place
// - GetNameFromPath handles strings, {name} objects and wrapper calls
// - ReadConfig / WriteConfig / FindMainConfig on disk

var shapes = map[string]string{
	"named exports": `export const core = { builder: 'webpack5' };
export const stories = ['../src/**/*.stories.tsx'];
`,
	"module.exports": `module.exports = {
  core: { builder: 'webpack5' },
  stories: ['../src/**/*.stories.tsx'],
};
`,
	"module.exports members": `module.exports.core = { builder: 'webpack5' };
module.exports.stories = ['../src/**/*.stories.tsx'];
`,
	"export default": `export default {
  core: { builder: 'webpack5' },
  stories: ['../src/**/*.stories.tsx'],
};
`,
	"default identifier": `const config = {
  core: { builder: 'webpack5' },
  stories: ['../src/**/*.stories.tsx'],
};
export default config;
`,
	"typed default": `import type { StorybookConfig } from '@storybook/react-vite';
const config: StorybookConfig = {
  core: { builder: 'webpack5' },
  stories: ['../src/**/*.stories.tsx'],
};
export default config satisfies StorybookConfig;
`,
}

func parse(t *testing.T, src string) *ConfigFile {
	t.Helper()
	cfg, err := Parse([]byte(src), "main.ts")
	require.NoError(t, err)
	return cfg
}

func TestGetFieldValue_Shapes(t *testing.T) {
	t.Parallel()

	for name, src := range shapes {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			cfg := parse(t, src)

			v, err := cfg.GetFieldValue([]string{"core", "builder"})
			require.NoError(t, err)
			assert.Equal(t, "webpack5", v)

			v, err = cfg.GetFieldValue([]string{"stories"})
			require.NoError(t, err)
			assert.Equal(t, []any{"../src/**/*.stories.tsx"}, v)

			v, err = cfg.GetFieldValue([]string{"core", "missing", "deeper"})
			require.NoError(t, err)
			assert.Nil(t, v)

			v, err = cfg.GetFieldValue([]string{"framework"})
			require.NoError(t, err)
			assert.Nil(t, v)
		})
	}
}

func TestSetFieldValue_RoundTrip(t *testing.T) {
	t.Parallel()

	for name, src := range shapes {
		t.Run(name+"/existing", func(t *testing.T) {
			t.Parallel()
			cfg := parse(t, src)
			require.NoError(t, cfg.SetFieldValue([]string{"core", "builder"}, "X"))
			assert.Equal(t, "X", cfg.GetSafeFieldValue([]string{"core", "builder"}))
		})
		t.Run(name+"/new nested", func(t *testing.T) {
			t.Parallel()
			cfg := parse(t, src)
			require.NoError(t, cfg.SetFieldValue([]string{"core", "options", "lazy"}, true))
			assert.Equal(t, true, cfg.GetSafeFieldValue([]string{"core", "options", "lazy"}))
			assert.Equal(t, "webpack5", cfg.GetSafeFieldValue([]string{"core", "builder"}))
		})
		t.Run(name+"/new root", func(t *testing.T) {
			t.Parallel()
			cfg := parse(t, src)
			require.NoError(t, cfg.SetFieldValue([]string{"docs", "autodocs"}, "tag"))
			assert.Equal(t, "tag", cfg.GetSafeFieldValue([]string{"docs", "autodocs"}))
			assert.Equal(t, []any{"../src/**/*.stories.tsx"}, cfg.GetSafeFieldValue([]string{"stories"}))
		})
	}
}

func TestSetFieldValue_EmptyFile(t *testing.T) {
	t.Parallel()

	cfg := parse(t, "")
	require.NoError(t, cfg.SetFieldValue([]string{"core", "builder"}, "X"))
	assert.Equal(t, "X", cfg.GetSafeFieldValue([]string{"core", "builder"}))
	assert.Equal(t, "export const core = { builder: \"X\" };\n", cfg.Render())
}

func TestSetFieldValue_PreservesFormatting(t *testing.T) {
	t.Parallel()

	src := `// main config
module.exports = {
  stories: ['../src/**/*.mdx'],
  addons: [
    '@storybook/addon-essentials', // keep me
  ],
};
`
	cfg := parse(t, src)
	require.NoError(t, cfg.SetFieldValue([]string{"framework", "name"}, "@storybook/react-vite"))

	want := `// main config
module.exports = {
  stories: ['../src/**/*.mdx'],
  addons: [
    '@storybook/addon-essentials', // keep me
  ],
  framework: { name: '@storybook/react-vite' },
};
`
	assert.Equal(t, want, cfg.Render())
}

func TestSetFieldValue_NotObject(t *testing.T) {
	t.Parallel()

	cfg := parse(t, `export const core = 'webpack5';`)
	err := cfg.SetFieldValue([]string{"core", "builder"}, "X")
	assert.ErrorIs(t, err, ErrNotObject)
	assert.Equal(t, `export const core = 'webpack5';`, cfg.Render())
}

func TestSetFieldValue_Values(t *testing.T) {
	t.Parallel()

	cfg := parse(t, `export default { a: 1 };`)
	require.NoError(t, cfg.SetFieldValue([]string{"a"}, map[string]any{"b": []any{1.5, "x"}, "a-b": nil}))
	assert.Equal(t, `export default { a: { "a-b": null, b: [1.5, "x"] } };`, cfg.Render())

	require.NoError(t, cfg.SetFieldValue([]string{"a"}, Expr("require.resolve('x')")))
	assert.Equal(t, `export default { a: require.resolve('x') };`, cfg.Render())
}

func TestQuoteStyle(t *testing.T) {
	t.Parallel()

	assert.Equal(t, byte('\''), parse(t, `import a from 'a'; import b from 'b'; export const x = "c";`).QuoteStyle())
	assert.Equal(t, byte('"'), parse(t, `import a from "a"; export const x = 'c';`).QuoteStyle())
	assert.Equal(t, byte('"'), parse(t, `export const x = 1;`).QuoteStyle())
}

func TestRemoveField(t *testing.T) {
	t.Parallel()

	t.Run("property with trailing comma", func(t *testing.T) {
		t.Parallel()
		cfg := parse(t, "export default {\n  a: 1,\n  b: 2,\n};\n")
		require.NoError(t, cfg.RemoveField([]string{"a"}))
		assert.Equal(t, "export default {\n  b: 2,\n};\n", cfg.Render())
	})

	t.Run("last property", func(t *testing.T) {
		t.Parallel()
		cfg := parse(t, "export default { a: 1, b: 2 };")
		require.NoError(t, cfg.RemoveField([]string{"b"}))
		assert.Equal(t, "export default { a: 1 };", cfg.Render())
	})

	t.Run("nested", func(t *testing.T) {
		t.Parallel()
		cfg := parse(t, "export default { core: { builder: 'x', disableTelemetry: true } };")
		require.NoError(t, cfg.RemoveField([]string{"core", "builder"}))
		assert.Nil(t, cfg.GetSafeFieldValue([]string{"core", "builder"}))
		assert.Equal(t, true, cfg.GetSafeFieldValue([]string{"core", "disableTelemetry"}))
	})

	t.Run("named export", func(t *testing.T) {
		t.Parallel()
		cfg := parse(t, "export const a = 1;\nexport const b = 2;\n")
		require.NoError(t, cfg.RemoveField([]string{"a"}))
		assert.Equal(t, "export const b = 2;\n", cfg.Render())
	})

	t.Run("missing", func(t *testing.T) {
		t.Parallel()
		cfg := parse(t, "export default { a: 1 };")
		require.NoError(t, cfg.RemoveField([]string{"zzz"}))
		assert.Equal(t, "export default { a: 1 };", cfg.Render())
	})
}

func TestAppendValueToArray(t *testing.T) {
	t.Parallel()

	cfg := parse(t, `export default { addons: ['a'], empty: [] };`)
	require.NoError(t, cfg.AppendValueToArray([]string{"addons"}, "b"))
	require.NoError(t, cfg.AppendValueToArray([]string{"empty"}, "c"))
	require.NoError(t, cfg.AppendValueToArray([]string{"created"}, "d"))

	assert.Equal(t, []any{"a", "b"}, cfg.GetSafeFieldValue([]string{"addons"}))
	assert.Equal(t, []any{"c"}, cfg.GetSafeFieldValue([]string{"empty"}))
	assert.Equal(t, []any{"d"}, cfg.GetSafeFieldValue([]string{"created"}))

	err := parse(t, `export default { addons: 'x' };`).AppendValueToArray([]string{"addons"}, "y")
	assert.ErrorIs(t, err, ErrNotArray)
}

func TestGetFieldValue_NonLiteral(t *testing.T) {
	t.Parallel()

	cfg := parse(t, `export default { framework: getFramework() };`)
	_, err := cfg.GetFieldValue([]string{"framework"})
	assert.Error(t, err)
	assert.Nil(t, cfg.GetSafeFieldValue([]string{"framework"}))
}

func TestGetNameFromPath(t *testing.T) {
	t.Parallel()

	cfg := parse(t, `
const getAbsolutePath = (v) => v;
export default {
  framework: { name: '@storybook/react-vite', options: {} },
  builder: '@storybook/builder-vite',
  renderer: getAbsolutePath('@storybook/react'),
  other: 42,
};
`)
	assert.Equal(t, "@storybook/react-vite", cfg.GetNameFromPath([]string{"framework"}))
	assert.Equal(t, "@storybook/builder-vite", cfg.GetNameFromPath([]string{"builder"}))
	assert.Equal(t, "@storybook/react", cfg.GetNameFromPath([]string{"renderer"}))
	assert.Equal(t, "", cfg.GetNameFromPath([]string{"other"}))
	assert.Equal(t, "", cfg.GetNameFromPath([]string{"missing"}))
}

func TestReadWriteConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := FindMainConfig(dir)
	assert.ErrorIs(t, err, ErrNotFound)

	path := filepath.Join(dir, "main.js")
	require.NoError(t, os.WriteFile(path, []byte("module.exports = { stories: [] };\n"), 0644))

	found, err := FindMainConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, path, found)

	cfg, err := ReadConfig(found)
	require.NoError(t, err)
	require.NoError(t, cfg.AppendValueToArray([]string{"stories"}, "../src/**/*.mdx"))
	require.NoError(t, WriteConfig(cfg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "module.exports = { stories: [\"../src/**/*.mdx\"] };\n", string(data))
}
