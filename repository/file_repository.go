package repository

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"neodymium/models"
	"neodymium/service"

	log "github.com/sirupsen/logrus"
)

// Table file names inside the data directory
const (
	RulesTableFile      = "rules.txt"
	RolesTableFile      = "roles.txt"
	EmojiRolesTableFile = "emoji_roles.txt"
	BaseRolesTableFile  = "base_roles.txt"
)

// FileRepository stores guild configurations as whitespace-separated text tables:
//
//	rules.txt        <guildId> <messageId>
//	roles.txt        <guildId> <messageId>
//	base_roles.txt   <guildId> <roleId>
//	emoji_roles.txt  <guildId> <emojiId> <roleId>
//
// Each write rewrites the affected tables wholesale through temporary files
// that are renamed over the old ones under a commit journal, so a table never
// holds a partial line and a multi-table change is never left half applied.
// When a guild appears more than once in a table the last line wins.
type FileRepository struct {
	dir string

	mu      sync.Mutex
	loaded  bool
	configs map[string]*models.GuildConfig // last state written to disk
}

var _ service.GuildConfigRepository = (*FileRepository)(nil)

// NewFileRepository creates a repository in dir, creating the directory if needed
func NewFileRepository(dir string) (*FileRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
	}
	return &FileRepository{
		dir:     dir,
		configs: make(map[string]*models.GuildConfig),
	}, nil
}

// LoadAll reads every table. Missing tables are treated as empty and
// malformed lines are skipped.
func (r *FileRepository) LoadAll(ctx context.Context) ([]*models.GuildConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.load(); err != nil {
		return nil, err
	}

	ids := sortedKeys(r.configs)
	configs := make([]*models.GuildConfig, 0, len(ids))
	for _, id := range ids {
		configs = append(configs, r.configs[id].Clone())
	}
	return configs, nil
}

// Save replaces the stored configuration of cfg's guild
func (r *FileRepository) Save(ctx context.Context, cfg *models.GuildConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureLoaded(); err != nil {
		return err
	}

	next := r.snapshot()
	if cfg.IsEmpty() {
		delete(next, cfg.GuildID())
	} else {
		next[cfg.GuildID()] = cfg.Clone()
	}
	return r.commit(next)
}

// Delete removes every line for a guild
func (r *FileRepository) Delete(ctx context.Context, guildID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureLoaded(); err != nil {
		return err
	}
	if _, ok := r.configs[guildID]; !ok {
		return nil
	}

	next := r.snapshot()
	delete(next, guildID)
	return r.commit(next)
}

func (r *FileRepository) ensureLoaded() error {
	if r.loaded {
		return nil
	}
	return r.load()
}

func (r *FileRepository) snapshot() map[string]*models.GuildConfig {
	next := make(map[string]*models.GuildConfig, len(r.configs)+1)
	for id, cfg := range r.configs {
		next[id] = cfg
	}
	return next
}

// tableOrder is the order tables are staged and renamed in
var tableOrder = []string{RulesTableFile, RolesTableFile, BaseRolesTableFile, EmojiRolesTableFile}

// commitJournalFile lists staged table files while a commit is being applied.
// Each line is "<tempFile> <table>".
const commitJournalFile = ".commit-journal"

// commit writes the tables whose contents differ between the current state and
// next, then adopts next. Changed tables are staged as synced temp files and
// recorded in the commit journal before any rename, so a crash mid-commit is
// rolled forward by the next load. On error the tables already replaced are
// restored and the repository keeps its previous state.
func (r *FileRepository) commit(next map[string]*models.GuildConfig) error {
	previous := renderTables(r.configs)
	tables := renderTables(next)

	var changed []string
	for _, name := range tableOrder {
		if !bytes.Equal(previous[name], tables[name]) {
			changed = append(changed, name)
		}
	}
	if len(changed) == 0 {
		r.configs = next
		return nil
	}

	staged := make(map[string]string, len(changed))
	discardStaged := func() {
		for _, tmp := range staged {
			os.Remove(tmp)
		}
	}

	for _, name := range changed {
		tmp, err := writeTempFile(filepath.Join(r.dir, name), tables[name])
		if err != nil {
			discardStaged()
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		staged[name] = tmp
	}

	var journal strings.Builder
	for _, name := range changed {
		fmt.Fprintf(&journal, "%s %s\n", filepath.Base(staged[name]), name)
	}
	journalPath := filepath.Join(r.dir, commitJournalFile)
	if err := writeFileAtomic(journalPath, []byte(journal.String())); err != nil {
		discardStaged()
		return fmt.Errorf("failed to write commit journal: %w", err)
	}

	for i, name := range changed {
		if err := os.Rename(staged[name], filepath.Join(r.dir, name)); err != nil {
			for _, pending := range changed[i:] {
				os.Remove(staged[pending])
			}
			r.restore(changed[:i], previous)
			os.Remove(journalPath)
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	if err := os.Remove(journalPath); err != nil {
		log.WithFields(log.Fields{
			"dir":   r.dir,
			"error": err,
		}).Warn("Failed to remove commit journal")
	}

	r.configs = next
	return nil
}

// restore puts back the previous contents of tables replaced by a failed commit
func (r *FileRepository) restore(names []string, previous map[string][]byte) {
	for _, name := range names {
		if err := writeFileAtomic(filepath.Join(r.dir, name), previous[name]); err != nil {
			log.WithFields(log.Fields{
				"file":  name,
				"error": err,
			}).Error("Failed to restore table after write failure")
		}
	}
}

// recoverCommit finishes a commit interrupted after its journal was written
// and removes temp files left by commits that never got that far
func (r *FileRepository) recoverCommit() error {
	journalPath := filepath.Join(r.dir, commitJournalFile)
	data, err := os.ReadFile(journalPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read commit journal: %w", err)
	}

	if err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			fields := strings.Fields(line)
			if len(fields) != 2 || !slices.Contains(tableOrder, fields[1]) {
				continue
			}
			tmp := filepath.Join(r.dir, filepath.Base(fields[0]))
			table := fields[1]

			renameErr := os.Rename(tmp, filepath.Join(r.dir, table))
			if renameErr != nil && !errors.Is(renameErr, fs.ErrNotExist) {
				return fmt.Errorf("failed to recover %s: %w", table, renameErr)
			}
			if renameErr == nil {
				log.WithField("file", table).Warn("Recovered table from interrupted commit")
			}
		}
		if err := os.Remove(journalPath); err != nil {
			return fmt.Errorf("failed to remove commit journal: %w", err)
		}
	}

	for _, name := range append([]string{commitJournalFile}, tableOrder...) {
		leftovers, _ := filepath.Glob(filepath.Join(r.dir, "."+name+".tmp-*"))
		for _, tmp := range leftovers {
			os.Remove(tmp)
		}
	}
	return nil
}

func (r *FileRepository) load() error {
	if err := r.recoverCommit(); err != nil {
		return err
	}

	configs := make(map[string]*models.GuildConfig)
	get := func(guildID string) *models.GuildConfig {
		cfg, ok := configs[guildID]
		if !ok {
			cfg = models.NewGuildConfig(guildID)
			configs[guildID] = cfg
		}
		return cfg
	}

	err := r.readTable(RulesTableFile, 2, func(f []string) {
		get(f[0]).RulesMessageID = f[1]
	})
	if err != nil {
		return err
	}
	err = r.readTable(RolesTableFile, 2, func(f []string) {
		get(f[0]).RolesMessageID = f[1]
	})
	if err != nil {
		return err
	}
	err = r.readTable(BaseRolesTableFile, 2, func(f []string) {
		get(f[0]).BaseRoleID = f[1]
	})
	if err != nil {
		return err
	}
	err = r.readTable(EmojiRolesTableFile, 3, func(f []string) {
		get(f[0]).EmojiRoles[f[1]] = f[2]
	})
	if err != nil {
		return err
	}

	r.configs = configs
	r.loaded = true
	return nil
}

// readTable calls apply for each line with exactly fieldCount fields.
// Blank lines and lines starting with # are ignored.
func (r *FileRepository) readTable(name string, fieldCount int, apply func(fields []string)) error {
	path := filepath.Join(r.dir, name)
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != fieldCount {
			log.WithFields(log.Fields{
				"file": name,
				"line": lineNumber,
			}).Warn("Skipping malformed config line")
			continue
		}
		apply(fields)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil
}

func renderTables(configs map[string]*models.GuildConfig) map[string][]byte {
	var rules, roles, baseRoles, emojiRoles strings.Builder

	for _, id := range sortedKeys(configs) {
		cfg := configs[id]
		if cfg.RulesMessageID != "" {
			fmt.Fprintf(&rules, "%s %s\n", id, cfg.RulesMessageID)
		}
		if cfg.RolesMessageID != "" {
			fmt.Fprintf(&roles, "%s %s\n", id, cfg.RolesMessageID)
		}
		if cfg.BaseRoleID != "" {
			fmt.Fprintf(&baseRoles, "%s %s\n", id, cfg.BaseRoleID)
		}
		for _, emoji := range cfg.EmojiKeys() {
			fmt.Fprintf(&emojiRoles, "%s %s %s\n", id, emoji, cfg.EmojiRoles[emoji])
		}
	}

	return map[string][]byte{
		RulesTableFile:      []byte(rules.String()),
		RolesTableFile:      []byte(roles.String()),
		BaseRolesTableFile:  []byte(baseRoles.String()),
		EmojiRolesTableFile: []byte(emojiRoles.String()),
	}
}

// writeTempFile writes data to a synced temporary file next to path and
// returns its name
func writeTempFile(path string, data []byte) (name string, err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return "", err
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return "", err
	}
	if err = tmp.Close(); err != nil {
		return "", err
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", err
	}
	return tmp.Name(), nil
}

// writeFileAtomic writes data to a temporary file in the same directory and
// renames it over path
func writeFileAtomic(path string, data []byte) error {
	tmp, err := writeTempFile(path, data)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func sortedKeys(configs map[string]*models.GuildConfig) []string {
	ids := make([]string, 0, len(configs))
	for id := range configs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
