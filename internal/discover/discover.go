// Package discover locates Thunderbird profiles and their mailbox files, so
// the cleaner can be pointed at a profile instead of individual paths.
package discover

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Root returns the Thunderbird home directory, honoring MBOXDEDUP_HOME.
func Root() string {
	if root := os.Getenv("MBOXDEDUP_HOME"); root != "" {
		return root
	}
	return filepath.Join(os.Getenv("HOME"), ".thunderbird")
}

type Profile struct {
	Name         string
	Path         string
	AbsolutePath string
	IsRelative   bool
	Default      bool
}

// Mailbox is one mbox file found under a profile.
type Mailbox struct {
	Name string // path relative to the profile, used as the display name
	Path string
	Size int64
}

// Profiles parses profiles.ini under root.
func Profiles(root string) ([]Profile, error) {
	path := filepath.Join(root, "profiles.ini")
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var profiles []Profile
	var current map[string]string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section := strings.Trim(line, "[]")
			if current != nil {
				profiles = append(profiles, mapToProfile(root, current))
			}
			if strings.HasPrefix(strings.ToLower(section), "profile") {
				current = map[string]string{}
			} else {
				current = nil
			}
			continue
		}
		if current == nil {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		current[parts[0]] = parts[1]
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if current != nil {
		profiles = append(profiles, mapToProfile(root, current))
	}
	return profiles, nil
}

func mapToProfile(root string, kv map[string]string) Profile {
	p := Profile{
		Name:       kv["Name"],
		Path:       kv["Path"],
		IsRelative: kv["IsRelative"] == "1",
		Default:    kv["Default"] == "1",
	}
	if p.Name == "" {
		p.Name = filepath.Base(p.Path)
	}
	if p.IsRelative {
		p.AbsolutePath = filepath.Join(root, filepath.FromSlash(p.Path))
	} else {
		p.AbsolutePath = filepath.Clean(p.Path)
	}
	return p
}

// Resolve picks a profile by name, by directory, or the default one when
// name is empty.
func Resolve(root, name string) (Profile, error) {
	profiles, err := Profiles(root)
	if err != nil {
		return Profile{}, fmt.Errorf("load profiles: %w", err)
	}
	if name == "" {
		for _, p := range profiles {
			if p.Default {
				return p, nil
			}
		}
		if len(profiles) > 0 {
			return profiles[0], nil
		}
		return Profile{}, fmt.Errorf("no profiles found in %s", filepath.Join(root, "profiles.ini"))
	}
	needle := strings.ToLower(name)
	for _, p := range profiles {
		if strings.ToLower(p.Name) == needle || strings.ToLower(filepath.Base(p.AbsolutePath)) == needle {
			return p, nil
		}
	}
	if filepath.IsAbs(name) {
		return Profile{Name: filepath.Base(name), Path: name, AbsolutePath: name}, nil
	}
	alt := filepath.Join(root, name)
	if _, err := os.Stat(alt); err == nil {
		return Profile{Name: filepath.Base(name), Path: name, AbsolutePath: alt}, nil
	}
	return Profile{}, fmt.Errorf("profile %s not found", name)
}

// Mailboxes walks the profile's Mail and ImapMail trees and returns every
// plausible mbox file, skipping index and metadata files.
func Mailboxes(p Profile) ([]Mailbox, error) {
	roots := []string{
		filepath.Join(p.AbsolutePath, "Mail"),
		filepath.Join(p.AbsolutePath, "ImapMail"),
	}
	var boxes []Mailbox
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		if !info.IsDir() {
			continue
		}
		filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return filepath.SkipDir
			}
			if d.IsDir() {
				if strings.HasSuffix(d.Name(), ".mozmsgs") {
					return filepath.SkipDir
				}
				return nil
			}
			if !looksLikeMailbox(d.Name()) {
				return nil
			}
			info, err := d.Info()
			if err != nil || info.Size() == 0 {
				return nil
			}
			rel, err := filepath.Rel(p.AbsolutePath, path)
			if err != nil {
				rel = path
			}
			boxes = append(boxes, Mailbox{Name: rel, Path: path, Size: info.Size()})
			return nil
		})
	}
	sort.Slice(boxes, func(i, j int) bool { return boxes[i].Name < boxes[j].Name })
	return boxes, nil
}

func looksLikeMailbox(base string) bool {
	ext := filepath.Ext(base)
	if ext != "" && ext != ".mbox" {
		return false
	}
	for _, suffix := range []string{".msf", ".dat", ".json", ".db", ".sqlite", ".html", ".txt"} {
		if strings.HasSuffix(base, suffix) {
			return false
		}
	}
	return true
}

// Filter keeps mailboxes whose name contains like, case-insensitively.
func Filter(boxes []Mailbox, like string) []Mailbox {
	if like == "" {
		return boxes
	}
	needle := strings.ToLower(like)
	var out []Mailbox
	for _, b := range boxes {
		if strings.Contains(strings.ToLower(b.Name), needle) ||
			strings.Contains(strings.ToLower(filepath.Base(b.Name)), needle) {
			out = append(out, b)
		}
	}
	return out
}
