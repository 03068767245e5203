// SPDX-License-Identifier: MPL-2.0

package rootfs

import (
	"bufio"
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/spf13/afero"
)

// UnknownOS is returned by OSIdentifier when no release file can be read.
const UnknownOS = "unknown"

var (
	// ErrNoKernel is returned when /lib/modules holds no kernel with boot files.
	ErrNoKernel = errors.New("no kernel found")

	// ErrUnknownOS is returned when the OS cannot be identified.
	ErrUnknownOS = errors.New("could not determine OS version")
)

// BootFiles names the boot artifacts of one kernel, relative to /boot.
type BootFiles struct {
	KernelVersion string
	Kernel        string
	Initrd        string
}

// FindBootFiles picks the newest kernel under <root>/lib/modules that has a
// vmlinuz and an initramfs (initramfs-<kver>.img or initrd-<kver>) in /boot.
func FindBootFiles(fsys afero.Fs, root string) (BootFiles, error) {
	entries, err := afero.ReadDir(fsys, path.Join(root, "lib/modules"))
	if err != nil {
		return BootFiles{}, fmt.Errorf("%w: %w", ErrNoKernel, err)
	}
	var versions []string
	for _, e := range entries {
		if e.IsDir() {
			versions = append(versions, e.Name())
		}
	}
	slices.SortFunc(versions, func(a, b string) int { return CompareKernelVersions(b, a) })

	boot := path.Join(root, "boot")
	for _, kver := range versions {
		kernel := "vmlinuz-" + kver
		if !isFile(fsys, path.Join(boot, kernel)) {
			continue
		}
		for _, initrd := range []string{"initramfs-" + kver + ".img", "initrd-" + kver} {
			if isFile(fsys, path.Join(boot, initrd)) {
				return BootFiles{KernelVersion: kver, Kernel: kernel, Initrd: initrd}, nil
			}
		}
	}
	return BootFiles{}, fmt.Errorf("%w under %s", ErrNoKernel, path.Join(root, "lib/modules"))
}

// CompareKernelVersions orders kernel release strings the way rpm orders
// versions: digit runs compare numerically, letter runs lexically, and any
// other character only separates segments. A digit run is newer than a
// letter run, and a version with more segments is newer than its prefix.
func CompareKernelVersions(a, b string) int {
	sa, sb := versionSegments(a), versionSegments(b)
	for i := 0; i < len(sa) && i < len(sb); i++ {
		x, y := sa[i], sb[i]
		xNum, yNum := isDigit(x[0]), isDigit(y[0])
		switch {
		case xNum && yNum:
			x, y = strings.TrimLeft(x, "0"), strings.TrimLeft(y, "0")
			if c := cmp.Compare(len(x), len(y)); c != 0 {
				return c
			}
			if c := strings.Compare(x, y); c != 0 {
				return c
			}
		case xNum:
			return 1
		case yNum:
			return -1
		default:
			if c := strings.Compare(x, y); c != 0 {
				return c
			}
		}
	}
	return cmp.Compare(len(sa), len(sb))
}

func versionSegments(v string) []string {
	var segs []string
	for i := 0; i < len(v); {
		switch {
		case isDigit(v[i]):
			j := i
			for j < len(v) && isDigit(v[j]) {
				j++
			}
			segs = append(segs, v[i:j])
			i = j
		case isLetter(v[i]):
			j := i
			for j < len(v) && isLetter(v[j]) {
				j++
			}
			segs = append(segs, v[i:j])
			i = j
		default:
			i++
		}
	}
	return segs
}

func isDigit(c byte) bool  { return c >= '0' && c <= '9' }
func isLetter(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }

// OSIdentifier derives a short OS name from <root>/etc/os-release: ID and
// VERSION_ID joined (rocky9.4), else ID_LIKE-NAME, else the dashed contents
// of /etc/redhat-release. The result is lower-cased.
func OSIdentifier(fsys afero.Fs, root string) (string, error) {
	if data, err := afero.ReadFile(fsys, path.Join(root, "etc/os-release")); err == nil {
		release := ParseOSRelease(data)
		if id, ok := release["ID"]; ok {
			if version, ok := release["VERSION_ID"]; ok {
				return strings.ToLower(id + version), nil
			}
		}
		if like, ok := release["ID_LIKE"]; ok {
			if name, ok := release["NAME"]; ok {
				return strings.ToLower(like + "-" + name), nil
			}
		}
	}
	if data, err := afero.ReadFile(fsys, path.Join(root, "etc/redhat-release")); err == nil {
		content := strings.TrimSpace(string(data))
		return strings.ToLower(strings.ReplaceAll(content, " ", "-")), nil
	}
	return UnknownOS, ErrUnknownOS
}

// ParseOSRelease parses KEY=value lines, stripping surrounding quotes.
func ParseOSRelease(data []byte) map[string]string {
	out := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(key)] = strings.Trim(strings.TrimSpace(value), `"'`)
	}
	return out
}

// IsSymlink reports whether p is a symbolic link. Filesystems without
// Lstat support never report links.
func IsSymlink(fsys afero.Fs, p string) (bool, error) {
	lst, ok := fsys.(afero.Lstater)
	if !ok {
		return false, nil
	}
	fi, lstatCalled, err := lst.LstatIfPossible(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return lstatCalled && fi.Mode()&fs.ModeSymlink != 0, nil
}

// RemoveResolvConfLink removes <root>/etc/resolv.conf when it is a symbolic
// link, which would otherwise dangle once the image runs elsewhere. It
// reports whether a link was removed.
func RemoveResolvConfLink(fsys afero.Fs, root string) (bool, error) {
	p := path.Join(root, "etc/resolv.conf")
	link, err := IsSymlink(fsys, p)
	if err != nil || !link {
		return false, err
	}
	if err := fsys.Remove(p); err != nil {
		return false, fmt.Errorf("remove %s: %w", p, err)
	}
	return true, nil
}

func isFile(fsys afero.Fs, p string) bool {
	fi, err := fsys.Stat(p)
	return err == nil && fi.Mode().IsRegular()
}
