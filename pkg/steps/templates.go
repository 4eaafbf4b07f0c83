package steps

import (
	"fmt"
	"path"
	"strings"

	"github.com/sparkgen/spark/pkg/core"
)

// srcPath returns the src-relative path for a component, picking the
// extension from the selected language.
func srcPath(name string, typescript bool) string {
	ext := ".jsx"
	if typescript {
		ext = ".tsx"
	}
	return path.Join("src", name+ext)
}

// srcScript is srcPath for plain modules without JSX.
func srcScript(name string, typescript bool) string {
	ext := ".js"
	if typescript {
		ext = ".ts"
	}
	return path.Join("src", name+ext)
}

func configName(base string, typescript bool) string {
	if typescript {
		return base + ".ts"
	}
	return base + ".js"
}

func indexHTML(projectName, entry string) string {
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="UTF-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1.0" />
    <title>%s</title>
  </head>
  <body>
    <div id="root"></div>
    <script type="module" src="/%s"></script>
  </body>
</html>
`, projectName, entry)
}

const viteConfig = `import { defineConfig } from 'vite'
import react from '@vitejs/plugin-react'

export default defineConfig({
  plugins: [react()],
})
`

func mainEntry(typescript bool) string {
	root := "document.getElementById('root')"
	if typescript {
		root += "!"
	}
	return fmt.Sprintf(`import { StrictMode } from 'react'
import { createRoot } from 'react-dom/client'
import './index.css'
import App from './App'

createRoot(%s).render(
  <StrictMode>
    <App />
  </StrictMode>,
)
`, root)
}

func appComponent(projectName string) string {
	return fmt.Sprintf(`function App() {
  return (
    <main>
      <h1>%s</h1>
    </main>
  )
}

export default App
`, projectName)
}

const baseCSS = `:root {
  font-family: system-ui, sans-serif;
  line-height: 1.5;
}

body {
  margin: 0;
  min-height: 100vh;
}
`

const tsconfigJSON = `{
  "compilerOptions": {
    "target": "ES2022",
    "module": "ESNext",
    "moduleResolution": "bundler",
    "jsx": "react-jsx",
    "strict": true,
    "skipLibCheck": true,
    "noEmit": true
  },
  "include": ["src"]
}
`

func zustandStore(typescript bool) string {
	if typescript {
		return `import { create } from 'zustand'

interface AppState {
  count: number
  increment: () => void
}

export const useAppStore = create<AppState>((set) => ({
  count: 0,
  increment: () => set((state) => ({ count: state.count + 1 })),
}))
`
	}
	return `import { create } from 'zustand'

export const useAppStore = create((set) => ({
  count: 0,
  increment: () => set((state) => ({ count: state.count + 1 })),
}))
`
}

const reduxStore = `import { configureStore, createSlice } from '@reduxjs/toolkit'

const appSlice = createSlice({
  name: 'app',
  initialState: { count: 0 },
  reducers: {
    increment: (state) => {
      state.count += 1
    },
  },
})

export const { increment } = appSlice.actions

export const store = configureStore({
  reducer: { app: appSlice.reducer },
})
`

const eslintConfig = `import js from '@eslint/js'
import globals from 'globals'
import reactHooks from 'eslint-plugin-react-hooks'
import reactRefresh from 'eslint-plugin-react-refresh'

export default [
  js.configs.recommended,
  {
    languageOptions: { globals: globals.browser },
    plugins: {
      'react-hooks': reactHooks,
      'react-refresh': reactRefresh,
    },
  },
]
`

const prettierConfig = `{
  "semi": false,
  "singleQuote": true
}
`

const gitignoreContent = `node_modules
dist
*.log
.env
`

func readmeContent(state *core.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", state.ProjectName)
	b.WriteString("Scaffolded with spark.\n\n## Stack\n\n")
	for _, opt := range []string{OptionLanguage, OptionStyling, OptionState, OptionRouting} {
		if v := state.Selections.Option(opt); v != "" && v != "none" {
			fmt.Fprintf(&b, "- %s: %s\n", opt, v)
		}
	}
	b.WriteString("\n## Scripts\n\n```sh\nnpm run dev\nnpm run build\n```\n")
	return b.String()
}
