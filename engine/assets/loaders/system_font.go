package loaders

import (
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/resources"
)

type SystemFontLoader struct{}

// Load reads a .ttf or .otf file and checks that it parses. The face name is
// the font's family name, or the file name when the font carries none.
func (fl *SystemFontLoader) Load(path string, params interface{}) (*resources.Resource, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, core.WrapError(err, core.KindInit, "reading font %s", path)
	}
	face, err := ParseSystemFont(b)
	if err != nil {
		return nil, core.WrapError(err, core.KindUsage, "font %s", path)
	}
	if face == "" {
		face = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &resources.Resource{
		Name:     face,
		FullPath: path,
		Type:     resources.ResourceTypeSystemFont,
		DataSize: uint64(len(b)),
		Data:     &resources.SystemFontData{Face: face, Binary: b},
	}, nil
}

func (fl *SystemFontLoader) Unload(r *resources.Resource) error {
	r.Data = nil
	r.DataSize = 0
	return nil
}

// ParseSystemFont validates b and returns its family name.
func ParseSystemFont(b []byte) (string, error) {
	f, err := opentype.Parse(b)
	if err != nil {
		return "", err
	}
	name, err := f.Name(nil, sfnt.NameIDFamily)
	if err != nil && err != sfnt.ErrNotFound {
		return "", err
	}
	return name, nil
}
