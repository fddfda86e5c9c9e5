package assets

import (
	"fmt"
	"io/fs"
	"path"
	"strings"
)

// ShaderExt is the file extension of shader sources.
const ShaderExt = ".wgsl"

// ModuleName converts a slash-separated path relative to a shader root into an include module
// name: "postproc/types.wgsl" becomes "postproc::types".
//
// Parameters:
//   - rel: the path relative to the shader root
//
// Returns:
//   - string: the module name
func ModuleName(rel string) string {
	rel = strings.TrimSuffix(path.Clean(rel), ShaderExt)
	return strings.ReplaceAll(rel, "/", "::")
}

// LoadShaderDir reads every .wgsl file under dir.
//
// Parameters:
//   - fsys: the file system to read from, e.g. an embed.FS or os.DirFS
//   - dir: the shader root inside fsys
//
// Returns:
//   - map[string]string: shader sources keyed by module name
//   - error: error if the directory cannot be walked or a file cannot be read
func LoadShaderDir(fsys fs.FS, dir string) (map[string]string, error) {
	sources := make(map[string]string)
	err := fs.WalkDir(fsys, dir, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || path.Ext(p) != ShaderExt {
			return nil
		}

		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(p, dir), "/")
		sources[ModuleName(rel)] = string(data)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load shader directory %q: %w", dir, err)
	}
	return sources, nil
}
