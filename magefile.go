//go:build mage

// Copyright 2021-2023
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/magefile/mage/mg" // mg contains helpful utility functions, like Deps
	"github.com/magefile/mage/sh"
)

const (
	binaryName    = "pvmetrics"
	modulePath    = "github.com/penny-vault/pv-metrics"
	packageName   = "."
	noGitLdflags  = "-X " + modulePath + "/common.buildDate=$BUILD_DATE"
	defaultLdflag = "-X " + modulePath + "/common.commitHash=$COMMIT_HASH -X " + modulePath + "/common.buildDate=$BUILD_DATE"
	coverProfile  = "coverage.out"
	minCoverage   = 80.0
)

var ldflags = defaultLdflag

// allow user to override go executable by running as GOEXE=xxx make ... on unix-like systems
var goexe = "go"

func init() {
	if exe := os.Getenv("GOEXE"); exe != "" {
		goexe = exe
	}
}

// Default target to run when none is specified
// If not set, running mage will list available targets
// var Default = Build

func Build() error {
	fmt.Println("Building...")
	return runWith(flagEnv(), goexe, "build", "-o", binaryName, "-ldflags", buildLdflags(), buildFlags(), "-v", packageName)
}

// Clean up
func Clean() {
	fmt.Println("Cleaning...")
	os.RemoveAll(binaryName)
}

// Run formatting, vet, and the race-enabled suite
func Check() {
	mg.Deps(Fmt, Vet)
	mg.Deps(TestRace)
}

// Run tests
func Test() error {
	fmt.Println("Go Test")
	return runCmd(nil, goexe, "test", "./...", buildFlags())
}

// Run tests with race detector
func TestRace() error {
	fmt.Println("Go Test Race")
	return runCmd(nil, goexe, "test", "-race", "./...", buildFlags())
}

// Run the ginkgo suites in random order
func Ginkgo() error {
	fmt.Println("Ginkgo")
	return sh.RunV("ginkgo", "-r", "--randomize-all", "--fail-on-pending", "--keep-going")
}

// Report files that are not gofmt'ed
func Fmt() error {
	fmt.Println("Go Format")

	dirs, err := packageDirs()
	if err != nil {
		return err
	}

	// gofmt exits zero even when files need formatting
	s, err := sh.Output("gofmt", append([]string{"-l"}, dirs...)...)
	if err != nil {
		return fmt.Errorf("running gofmt: %w", err)
	}
	if s != "" {
		fmt.Println("The following files are not gofmt'ed:")
		fmt.Println(s)
		return errors.New("improperly formatted go files")
	}
	return nil
}

// Run golangci-lint
func Lint() error {
	fmt.Println("Go Lint")
	return sh.RunV("golangci-lint", "run", "./...")
}

// Run go vet linter
func Vet() error {
	fmt.Println("Go Vet")

	if err := sh.Run(goexe, "vet", "./..."); err != nil {
		return fmt.Errorf("error running go vet: %v", err)
	}
	return nil
}

// Check statement coverage of the workbook and metrics packages, the code
// that decides what lands in the saved spreadsheet
func Coverage() error {
	fmt.Println("Coverage")

	if err := sh.Run(goexe, "test", "-coverprofile="+coverProfile, "-covermode=atomic",
		"./workbook/...", "./metrics/..."); err != nil {
		return err
	}

	report, err := sh.Output(goexe, "tool", "cover", "-func="+coverProfile)
	if err != nil {
		return err
	}
	fmt.Println(report)

	total, err := totalCoverage(report)
	if err != nil {
		return err
	}
	if total < minCoverage {
		return fmt.Errorf("coverage %.1f%% is below the required %.1f%%", total, minCoverage)
	}
	return nil
}

// Open an HTML coverage report for the whole module
func TestCoverHTML() error {
	fmt.Println("Generate Test Coverage HTML")

	if err := sh.Run(goexe, "test", "-coverprofile="+coverProfile, "-covermode=count", "./..."); err != nil {
		return err
	}
	return sh.Run(goexe, "tool", "cover", "-html="+coverProfile)
}

// Build the binary and compute metrics for a sample portfolio into a
// scratch workbook
func Sample() error {
	mg.Deps(Build)

	dir, err := os.MkdirTemp("", "pvmetrics-sample")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	workbook := filepath.Join(dir, "sample.xlsx")
	if err := sh.RunV("./"+binaryName, "update", "--file", workbook, "--start", "2020-01-01", "VFIAX", "VBTLX"); err != nil {
		return err
	}
	return sh.RunV("./"+binaryName, "metrics", workbook)
}

// Helpers

func buildFlags() []string {
	if runtime.GOOS == "windows" {
		return []string{"-buildmode", "exe"}
	}
	return nil
}

// buildLdflags drops the commit hash when the tree is not a git checkout
func buildLdflags() string {
	if hash, err := sh.Output("git", "rev-parse", "--short", "HEAD"); err != nil || hash == "" {
		return noGitLdflags
	}
	return ldflags
}

func flagEnv() map[string]string {
	hash, _ := sh.Output("git", "rev-parse", "--short", "HEAD")
	return map[string]string{
		"COMMIT_HASH": hash,
		"BUILD_DATE":  time.Now().Format("2006-01-02T15:04:05Z0700"),
	}
}

func runCmd(env map[string]string, cmd string, args ...interface{}) error {
	if mg.Verbose() {
		return runWith(env, cmd, args...)
	}
	output, err := sh.OutputWith(env, cmd, argsToStrings(args...)...)
	if err != nil {
		fmt.Fprint(os.Stderr, output)
	}

	return err
}

func runWith(env map[string]string, cmd string, inArgs ...interface{}) error {
	s := argsToStrings(inArgs...)
	return sh.RunWith(env, cmd, s...)
}

var (
	pkgDirs     []string
	pkgDirsInit sync.Once
)

// packageDirs lists the directory of every package in the module
func packageDirs() ([]string, error) {
	var err error
	pkgDirsInit.Do(func() {
		var s string
		s, err = sh.Output(goexe, "list", "-f", "{{.Dir}}", "./...")
		if err != nil {
			return
		}
		pkgDirs = strings.Split(strings.TrimSpace(s), "\n")
	})
	return pkgDirs, err
}

// totalCoverage reads the percentage from the "total:" line of go tool cover -func
func totalCoverage(report string) (float64, error) {
	for _, line := range strings.Split(report, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 || fields[0] != "total:" {
			continue
		}
		return strconv.ParseFloat(strings.TrimSuffix(fields[len(fields)-1], "%"), 64)
	}
	return 0, errors.New("no total in coverage report")
}

func argsToStrings(v ...interface{}) []string {
	var args []string
	for _, arg := range v {
		switch v := arg.(type) {
		case string:
			if v != "" {
				args = append(args, v)
			}
		case []string:
			if v != nil {
				args = append(args, v...)
			}
		default:
			panic("invalid type")
		}
	}

	return args
}
