// Package store holds all mutable plugin state in a single JSON
// document: per-group settings, per-user download quotas and the global
// content restriction lists. Every mutation rewrites the whole file.
package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"

	"github.com/charmbracelet/log"
)

// Seeded into new documents, mirroring the upstream plugin defaults.
var (
	DefaultRestrictedTags = []string{"獵奇", "重口", "YAOI", "yaoi", "男同", "血腥"}
	DefaultRestrictedIDs  = []string{
		"136494", "323666", "350234", "363848", "405848",
		"454278", "481481", "559716", "611650", "629252",
		"69658", "626487", "400002", "208092", "253199",
		"382596", "418600", "279464", "565616", "222458",
	}
)

const schemaVersion = 1

// GroupRecord is the per-group state. A nil Enabled means the group has
// never been toggled and falls back to the configured default.
type GroupRecord struct {
	Enabled   *bool    `json:"enabled,omitempty"`
	Blacklist []string `json:"blacklist,omitempty"`
	FolderID  string   `json:"folder_id,omitempty"`
}

type document struct {
	Version         int                     `json:"version"`
	Groups          map[string]*GroupRecord `json:"groups"`
	UserLimits      map[string]int          `json:"user_limits"`
	RestrictedIDs   []string                `json:"restricted_ids"`
	RestrictedTags  []string                `json:"restricted_tags"`
	ForbiddenAlbums []string                `json:"forbidden_albums"`
}

type Options struct {
	DefaultGroupEnabled bool
	DefaultUserLimit    int
	Logger              *log.Logger
}

// Store is the persistent state manager. All mutating operations are
// serialized by a single mutex and flush the whole document to disk
// before returning.
type Store struct {
	mu   sync.Mutex
	path string
	opts Options
	doc  document
	log  *log.Logger
}

// Open loads the document at path. A missing file starts an empty
// document; a malformed one is logged and discarded.
func Open(path string, opts Options) (*Store, error) {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	s := &Store{path: path, opts: opts, log: opts.Logger}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	s.load()
	return s, nil
}

func (s *Store) load() {
	s.doc = emptyDocument()

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.log.Info("未找到数据文件，将创建新的文件", "path", s.path)
		s.seedDefaults()
		return
	}
	if err != nil {
		s.log.Error("数据文件读取错误", "path", s.path, "error", err)
		s.seedDefaults()
		return
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		s.log.Error("数据文件解析错误", "path", s.path, "error", err)
		s.seedDefaults()
		return
	}

	if _, versioned := probe["version"]; versioned {
		var doc document
		if err := json.Unmarshal(raw, &doc); err != nil {
			s.log.Error("数据文件解析错误", "path", s.path, "error", err)
			s.seedDefaults()
			return
		}
		s.doc = normalize(doc)
	} else {
		s.doc = loadLegacy(probe, s.log)
	}
	s.seedDefaults()
	s.log.Info("成功加载数据文件", "path", s.path)
}

// loadLegacy reads the unversioned flat layout, where group records sit
// beside the reserved keys at the top level.
func loadLegacy(probe map[string]json.RawMessage, logger *log.Logger) document {
	doc := emptyDocument()
	for key, raw := range probe {
		switch key {
		case "user_limits":
			_ = json.Unmarshal(raw, &doc.UserLimits)
		case "restricted_ids":
			_ = json.Unmarshal(raw, &doc.RestrictedIDs)
		case "restricted_tags":
			_ = json.Unmarshal(raw, &doc.RestrictedTags)
		case "forbidden_albums":
			_ = json.Unmarshal(raw, &doc.ForbiddenAlbums)
		default:
			var rec GroupRecord
			if err := json.Unmarshal(raw, &rec); err != nil {
				logger.Warn("忽略无法识别的数据项", "key", key)
				continue
			}
			doc.Groups[key] = &rec
		}
	}
	return normalize(doc)
}

func emptyDocument() document {
	return document{
		Version:         schemaVersion,
		Groups:          map[string]*GroupRecord{},
		UserLimits:      map[string]int{},
		RestrictedIDs:   []string{},
		RestrictedTags:  []string{},
		ForbiddenAlbums: []string{},
	}
}

func normalize(doc document) document {
	doc.Version = schemaVersion
	if doc.Groups == nil {
		doc.Groups = map[string]*GroupRecord{}
	}
	if doc.UserLimits == nil {
		doc.UserLimits = map[string]int{}
	}
	if doc.RestrictedIDs == nil {
		doc.RestrictedIDs = []string{}
	}
	if doc.RestrictedTags == nil {
		doc.RestrictedTags = []string{}
	}
	if doc.ForbiddenAlbums == nil {
		doc.ForbiddenAlbums = []string{}
	}
	return doc
}

func (s *Store) seedDefaults() {
	if len(s.doc.RestrictedTags) == 0 {
		s.doc.RestrictedTags = slices.Clone(DefaultRestrictedTags)
	}
	if len(s.doc.RestrictedIDs) == 0 {
		s.doc.RestrictedIDs = slices.Clone(DefaultRestrictedIDs)
	}
}

// save flushes the whole document. Callers hold s.mu. Write failures
// are logged only: in-memory state stays authoritative.
func (s *Store) save() {
	b, err := json.MarshalIndent(s.doc, "", "    ")
	if err != nil {
		s.log.Error("序列化数据失败", "error", err)
		return
	}
	if err := os.WriteFile(s.path, b, 0o644); err != nil {
		s.log.Error("保存数据文件出错", "error", err)
	}
}

func key(id int64) string { return strconv.FormatInt(id, 10) }

func (s *Store) group(gid int64) *GroupRecord {
	rec, ok := s.doc.Groups[key(gid)]
	if !ok {
		rec = &GroupRecord{}
		s.doc.Groups[key(gid)] = rec
	}
	return rec
}

// ------------------- 群功能启用 -------------------

func (s *Store) IsGroupEnabled(gid int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.doc.Groups[key(gid)]
	if !ok || rec.Enabled == nil {
		return s.opts.DefaultGroupEnabled
	}
	return *rec.Enabled
}

func (s *Store) SetGroupEnabled(gid int64, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.group(gid).Enabled = &enabled
	s.save()
}

// ------------------- 群文件夹 -------------------

func (s *Store) GroupFolderID(gid int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.doc.Groups[key(gid)]
	if !ok {
		return ""
	}
	return rec.FolderID
}

func (s *Store) SetGroupFolderID(gid int64, folderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.group(gid).FolderID = folderID
	s.save()
}

// ------------------- 用户下载次数 -------------------

func (s *Store) UserLimit(uid int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	limit, ok := s.doc.UserLimits[key(uid)]
	if !ok {
		return s.opts.DefaultUserLimit
	}
	return limit
}

func (s *Store) SetUserLimit(uid int64, limit int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.UserLimits[key(uid)] = limit
	s.save()
}

func (s *Store) IncreaseUserLimit(uid int64, amount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.UserLimits[key(uid)] = s.userLimitLocked(uid) + amount
	s.save()
}

// DecreaseUserLimit lowers the quota, never below zero.
func (s *Store) DecreaseUserLimit(uid int64, amount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	limit := s.userLimitLocked(uid) - amount
	if limit < 0 {
		limit = 0
	}
	s.doc.UserLimits[key(uid)] = limit
	s.save()
}

func (s *Store) userLimitLocked(uid int64) int {
	limit, ok := s.doc.UserLimits[key(uid)]
	if !ok {
		return s.opts.DefaultUserLimit
	}
	return limit
}

// ResetAllUserLimits rewrites every recorded quota to limit and returns
// how many users were touched.
func (s *Store) ResetAllUserLimits(limit int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.doc.UserLimits) == 0 {
		return 0
	}
	for uid := range s.doc.UserLimits {
		s.doc.UserLimits[uid] = limit
	}
	s.save()
	return len(s.doc.UserLimits)
}

// ------------------- 群黑名单 -------------------

func (s *Store) AddBlacklist(gid, uid int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.group(gid)
	if slices.Contains(rec.Blacklist, key(uid)) {
		return
	}
	rec.Blacklist = append(rec.Blacklist, key(uid))
	s.save()
}

func (s *Store) RemoveBlacklist(gid, uid int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.doc.Groups[key(gid)]
	if !ok {
		return
	}
	i := slices.Index(rec.Blacklist, key(uid))
	if i < 0 {
		return
	}
	rec.Blacklist = slices.Delete(rec.Blacklist, i, i+1)
	s.save()
}

func (s *Store) IsUserBlacklisted(gid, uid int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.doc.Groups[key(gid)]
	if !ok {
		return false
	}
	return slices.Contains(rec.Blacklist, key(uid))
}

func (s *Store) Blacklist(gid int64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.doc.Groups[key(gid)]
	if !ok {
		return nil
	}
	return slices.Clone(rec.Blacklist)
}

// ------------------- 禁止下载: IDs + Tags -------------------

func (s *Store) AddRestrictedID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.Contains(s.doc.RestrictedIDs, id) {
		return
	}
	s.doc.RestrictedIDs = append(s.doc.RestrictedIDs, id)
	s.save()
}

func (s *Store) IsIDRestricted(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Contains(s.doc.RestrictedIDs, id)
}

func (s *Store) AddRestrictedTag(tag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.Contains(s.doc.RestrictedTags, tag) {
		return
	}
	s.doc.RestrictedTags = append(s.doc.RestrictedTags, tag)
	s.save()
}

func (s *Store) IsTagRestricted(tag string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Contains(s.doc.RestrictedTags, tag)
}

// HasRestrictedTag reports whether any supplied tag is restricted.
func (s *Store) HasRestrictedTag(tags []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tags {
		if slices.Contains(s.doc.RestrictedTags, t) {
			return true
		}
	}
	return false
}

// IsContentRestricted is the gate used by the download flow: a match on
// the album id or on any of its tags blocks the download.
func (s *Store) IsContentRestricted(id string, tags []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.Contains(s.doc.RestrictedIDs, id) {
		return true
	}
	for _, t := range tags {
		if slices.Contains(s.doc.RestrictedTags, t) {
			return true
		}
	}
	return false
}

// ------------------- 禁用本子列表 -------------------
//
// Kept separate from restricted_ids on purpose: the upstream plugin
// never wired this list into the restriction check.

func (s *Store) ForbiddenAlbums() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.doc.ForbiddenAlbums)
}

func (s *Store) AddForbiddenAlbum(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.Contains(s.doc.ForbiddenAlbums, id) {
		return
	}
	s.doc.ForbiddenAlbums = append(s.doc.ForbiddenAlbums, id)
	s.save()
}

func (s *Store) RemoveForbiddenAlbum(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.Index(s.doc.ForbiddenAlbums, id)
	if i < 0 {
		return
	}
	s.doc.ForbiddenAlbums = slices.Delete(s.doc.ForbiddenAlbums, i, i+1)
	s.save()
}

func (s *Store) IsForbiddenAlbum(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Contains(s.doc.ForbiddenAlbums, id)
}
