package fuzztests

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

const (
	maxSeedBytes = 64 << 10 // 64 KiB: ограничение для тестового корпуса
)

var inlineSeeds = []string{
	"",
	"push proposed\nbind persistent-const var temp:Widget\n",
	"push legacy file\nbind restricted-flex var name:W\n",
	"declare f\npush proposed\ndefine f\npop\n",
	"pop\npop\n",
	"policy split\ndeduce deduced-expiring arg name:W const\n",
	"call g persistent-const,restricted-mut cond(name:W,temp:W):W\n",
	"forward 4 move(member(name:W):W):W scope=3\n",
	"forward 1024 name:W scope=4294967295\n",
	"push proposed\nforward 9223372036854775807 name:W\npop\n",
	"cond prefer-ref _ = subscript(call:W ret=ref):W\n",
	"bind persistent-mut arg name:W # trailing\r\n",
}

func addCorpusSeeds(f *testing.F) {
	for _, s := range inlineSeeds {
		f.Add([]byte(s))
	}
	addTestdataSeeds(f)
}

func addTestdataSeeds(f *testing.F) {
	root := filepath.Join("..", "..", "testdata")
	if _, err := os.Stat(root); err != nil {
		return
	}
	// проходим по дереву testdata, добавляем все *.rbu файлы
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() || filepath.Ext(path) != ".rbu" {
			return nil
		}
		// #nosec G304 -- path comes from repository testdata walk
		src, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		f.Add(clampSeed(src))
		return nil
	})
}

func clampSeed(src []byte) []byte {
	if len(src) <= maxSeedBytes {
		return append([]byte(nil), src...)
	}
	return append([]byte(nil), src[:maxSeedBytes]...)
}
