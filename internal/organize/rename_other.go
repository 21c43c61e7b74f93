//go:build !linux

package organize

func renameNoReplace(src, dst string) error {
	return renameChecked(src, dst)
}
