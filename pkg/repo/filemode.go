package repo

import (
	"os"

	"github.com/silt-vcs/silt/pkg/object"
)

// Tracked files carry one of two modes; anything else recorded in an
// index or tree entry collapses to the regular-file mode.

const (
	workFilePerm os.FileMode = 0o644
	workExecPerm os.FileMode = 0o755
)

func modeFromFileInfo(info os.FileInfo) string {
	if info.Mode().Perm()&0o111 == 0 {
		return object.TreeModeFile
	}
	return object.TreeModeExecutable
}

func normalizeFileMode(mode string) string {
	switch mode {
	case object.TreeModeExecutable:
		return object.TreeModeExecutable
	default:
		return object.TreeModeFile
	}
}

func filePermFromMode(mode string) os.FileMode {
	switch normalizeFileMode(mode) {
	case object.TreeModeExecutable:
		return workExecPerm
	default:
		return workFilePerm
	}
}
