package run_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/carlmjohnson/be"
	"github.com/ocflkit/ocfl/cmd/ocfl/run"
)

var (
	contentFixture = filepath.Join(`..`, `..`, `..`, `testdata`, `content-fixture`)
	allLayouts     = []string{
		"0002-flat-direct-storage-layout",
		"0003-hash-and-id-n-tuple-storage-layout",
		"0004-hashed-n-tuple-storage-layout",
		// "0006-flat-omit-prefix-storage-layout",
		"0007-n-tuple-omit-prefix-storage-layout",
	}
)

func testRun(args []string, expect func(err error, stdout, stderr string)) {
	ctx := context.Background()
	stdout := &strings.Builder{}
	stderr := &strings.Builder{}
	args = append([]string{"ocfl"}, args...)
	err := run.CLI(ctx, args, stdout, stderr)
	expect(err, stdout.String(), stderr.String())
}

func TestAllLayouts(t *testing.T) {
	for _, l := range allLayouts {
		t.Run(l, func(t *testing.T) {
			tmpDir := t.TempDir()
			rootDesc := "test description"
			args := []string{
				"init-root",
				"--description", rootDesc,
				"--root", tmpDir,
				"--layout", l,
			}
			testRun(args, func(err error, stdout string, stderr string) {
				be.NilErr(t, err)
				be.True(t, strings.Contains(stdout, tmpDir))
				be.True(t, strings.Contains(stdout, l))
				be.True(t, strings.Contains(stdout, rootDesc))
			})
			// ocfl commit
			objID := "object-01"
			args = []string{
				"commit",
				contentFixture,
				"--root", tmpDir,
				"--id", objID,
				"--message", "my message",
				"--name", "Me",
				"--email", "me@domain.net",
			}
			testRun(args, func(err error, _ string, _ string) {
				be.NilErr(t, err)
			})
			// ocfl ls
			args = []string{
				"ls",
				"--root", tmpDir,
				"--id", objID,
			}
			testRun(args, func(err error, stdout string, _ string) {
				be.NilErr(t, err)
				be.True(t, strings.Contains(stdout, "hello.csv"))
				be.True(t, strings.Contains(stdout, "folder1/file.txt"))
			})

		})
	}
}

func TestStagedWorkflow(t *testing.T) {
	tmpDir := t.TempDir()
	objID := "urn:test:staged"
	testRun([]string{"init-root", "--root", tmpDir, "--layout", "0002-flat-direct-storage-layout"},
		func(err error, _, _ string) { be.NilErr(t, err) })
	// stage a new object and add content
	testRun([]string{"new", "--root", tmpDir, "--id", objID, "--alg", "sha256"},
		func(err error, _, _ string) { be.NilErr(t, err) })
	testRun([]string{"cp", "--root", tmpDir, "--id", objID, contentFixture, "."},
		func(err error, _, _ string) { be.NilErr(t, err) })
	// status lists the staged object and its changes
	testRun([]string{"status", "--root", tmpDir},
		func(err error, stdout, _ string) {
			be.NilErr(t, err)
			be.True(t, strings.Contains(stdout, objID))
		})
	testRun([]string{"status", "--root", tmpDir, "--id", objID},
		func(err error, stdout, _ string) {
			be.NilErr(t, err)
			be.True(t, strings.Contains(stdout, "hello.csv"))
		})
	// commit the staged version
	testRun([]string{"commit", "--root", tmpDir, "--id", objID, "-m", "first", "-n", "Me", "-e", "me@example.org"},
		func(err error, _, _ string) { be.NilErr(t, err) })
	testRun([]string{"ls", "--root", tmpDir, "--id", objID},
		func(err error, stdout, _ string) {
			be.NilErr(t, err)
			be.True(t, strings.Contains(stdout, "hello.csv"))
			be.True(t, strings.Contains(stdout, "folder1/file.txt"))
		})
	// cat a file with fixity checking
	testRun([]string{"cat", "--root", tmpDir, "--id", objID, "--fixity", "hello.csv"},
		func(err error, stdout, _ string) {
			be.NilErr(t, err)
			be.Equal(t, `1,2,3,"strings"`, stdout)
		})
	// remove a file in a second version
	testRun([]string{"rm", "--root", tmpDir, "--id", objID, "hello.csv"},
		func(err error, _, _ string) { be.NilErr(t, err) })
	testRun([]string{"commit", "--root", tmpDir, "--id", objID, "-m", "rm hello", "-n", "Me"},
		func(err error, _, _ string) { be.NilErr(t, err) })
	testRun([]string{"log", "--root", tmpDir, "--id", objID},
		func(err error, stdout, _ string) {
			be.NilErr(t, err)
			be.True(t, strings.Contains(stdout, "v1"))
			be.True(t, strings.Contains(stdout, "v2"))
			be.True(t, strings.Contains(stdout, "rm hello"))
		})
	testRun([]string{"show", "--root", tmpDir, "--id", objID},
		func(err error, stdout, _ string) {
			be.NilErr(t, err)
			be.True(t, strings.Contains(stdout, "hello.csv"))
		})
	testRun([]string{"diff", "--root", tmpDir, "--id", objID, "-v", "1", "-v", "2"},
		func(err error, stdout, _ string) {
			be.NilErr(t, err)
			be.True(t, strings.Contains(stdout, "- hello.csv"))
		})
	// validate the object and the root
	testRun([]string{"validate", "--root", tmpDir, "--id", objID},
		func(err error, stdout, _ string) {
			be.NilErr(t, err)
			be.True(t, strings.Contains(stdout, "is valid"))
		})
	testRun([]string{"validate", "--root", tmpDir},
		func(err error, stdout, _ string) {
			be.NilErr(t, err)
			be.True(t, strings.Contains(stdout, "is valid"))
		})
	// info
	testRun([]string{"info", "--root", tmpDir, "--id", objID},
		func(err error, stdout, _ string) {
			be.NilErr(t, err)
			be.True(t, strings.Contains(stdout, objID))
			be.True(t, strings.Contains(stdout, "sha256"))
		})
	// purge with --yes
	testRun([]string{"purge", "--root", tmpDir, "--id", objID, "--yes"},
		func(err error, _, _ string) { be.NilErr(t, err) })
	testRun([]string{"ls", "--root", tmpDir},
		func(err error, stdout, _ string) {
			be.NilErr(t, err)
			be.False(t, strings.Contains(stdout, objID))
		})
}

func TestConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	rootDir := filepath.Join(tmpDir, "repo")
	confPath := filepath.Join(tmpDir, "ocfl.toml")
	conf := `[global]
author_name = "Config Author"
author_address = "mailto:author@example.org"

[repo1]
root = "` + strings.ReplaceAll(rootDir, `\`, `\\`) + `"
`
	be.NilErr(t, os.WriteFile(confPath, []byte(conf), 0666))
	testRun([]string{"init-root", "--config-file", confPath, "--repo", "repo1"},
		func(err error, _, _ string) { be.NilErr(t, err) })
	// author_name from config is used for commits
	objID := "urn:test:config"
	testRun([]string{"new", "--config-file", confPath, "--repo", "repo1", "--id", objID},
		func(err error, _, _ string) { be.NilErr(t, err) })
	testRun([]string{"cp", "--config-file", confPath, "--repo", "repo1", "--id", objID, filepath.Join(contentFixture, "hello.csv"), "hello.csv"},
		func(err error, _, _ string) { be.NilErr(t, err) })
	testRun([]string{"commit", "--config-file", confPath, "--repo", "repo1", "--id", objID, "-m", "first"},
		func(err error, _, _ string) { be.NilErr(t, err) })
	testRun([]string{"log", "--config-file", confPath, "--repo", "repo1", "--id", objID},
		func(err error, stdout, _ string) {
			be.NilErr(t, err)
			be.True(t, strings.Contains(stdout, "Config Author"))
		})
	testRun([]string{"config", "--config-file", confPath, "--repo", "repo1"},
		func(err error, stdout, _ string) {
			be.NilErr(t, err)
			be.True(t, strings.Contains(stdout, "Config Author"))
		})
}
