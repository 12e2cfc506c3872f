package runtime

import (
	"bufio"
	"embed"
	"io/fs"
	"strings"

	"github.com/samber/lo"
)

//go:embed censored/*
var censoredFolder embed.FS

// LoadCensoredWords reads the embedded word lists, one word per line.
// Blank lines and '#' comments are skipped, duplicates across
// languages are collapsed.
func LoadCensoredWords() ([]string, error) {
	var words []string
	err := fs.WalkDir(censoredFolder, "censored", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		f, err := censoredFolder.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			words = append(words, strings.ToLower(line))
		}
		return scanner.Err()
	})
	if err != nil {
		return nil, err
	}
	return lo.Uniq(words), nil
}
