package output

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ChannelLabels returns the labels of the 1+numDecoyFiles output channels:
// "target", then "decoy" for a single decoy channel or "decoy-1".."decoy-n".
func ChannelLabels(numDecoyFiles int) []string {
	labels := []string{"target"}
	if numDecoyFiles == 1 {
		return append(labels, "decoy")
	}
	for i := 1; i <= numDecoyFiles; i++ {
		labels = append(labels, fmt.Sprintf("decoy-%d", i))
	}
	return labels
}

// FileName builds "[dir/][fileroot.]command.[tag.]ext". Empty fileroot,
// dir and tag are omitted.
func FileName(dir, fileroot string, command Command, tag, ext string) string {
	parts := make([]string, 0, 4)
	if fileroot != "" {
		parts = append(parts, fileroot)
	}
	parts = append(parts, command.String())
	if tag != "" {
		parts = append(parts, tag)
	}
	parts = append(parts, ext)

	name := strings.Join(parts, ".")
	if dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}
