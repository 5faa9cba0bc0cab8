package bot

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/misty02600/jmcomic-bot/config"
	"github.com/misty02600/jmcomic-bot/internal/jm"
	"github.com/misty02600/jmcomic-bot/internal/onebot"
	"github.com/misty02600/jmcomic-bot/internal/store"
)

type fakeSource struct {
	detail        *jm.PhotoDetail
	detailErr     error
	detailCalls   int
	searchResults []jm.SearchResult
	searchErr     error
	downloadPath  string
	downloadErr   error
	downloadCalls int
}

func (f *fakeSource) GetPhotoDetail(ctx context.Context, id string) (*jm.PhotoDetail, error) {
	f.detailCalls++
	return f.detail, f.detailErr
}

func (f *fakeSource) SearchSite(ctx context.Context, query string) ([]jm.SearchResult, error) {
	return f.searchResults, f.searchErr
}

func (f *fakeSource) Download(ctx context.Context, detail *jm.PhotoDetail) (string, error) {
	f.downloadCalls++
	return f.downloadPath, f.downloadErr
}

func (f *fakeSource) FetchCover(ctx context.Context, id string) ([]byte, error) {
	return nil, jm.ErrNotFound
}

type fakeTransport struct {
	messages []string
	forwards int
	uploads  []string
	bans     []int64
	deleted  []int64
	roles    map[int64]string
	roleErr  error
}

func (f *fakeTransport) record(segs []onebot.Segment) (int64, error) {
	f.messages = append(f.messages, onebot.PlainText(segs))
	return int64(len(f.messages)), nil
}

func (f *fakeTransport) SendGroupMessage(ctx context.Context, groupID int64, segs ...onebot.Segment) (int64, error) {
	return f.record(segs)
}

func (f *fakeTransport) SendPrivateMessage(ctx context.Context, userID int64, segs ...onebot.Segment) (int64, error) {
	return f.record(segs)
}

func (f *fakeTransport) SendGroupForward(ctx context.Context, groupID int64, nodes []onebot.ForwardNode) error {
	f.forwards++
	return nil
}

func (f *fakeTransport) SendPrivateForward(ctx context.Context, userID int64, nodes []onebot.ForwardNode) error {
	f.forwards++
	return nil
}

func (f *fakeTransport) UploadGroupFile(ctx context.Context, groupID int64, path, name, folderID string) error {
	f.uploads = append(f.uploads, name)
	return nil
}

func (f *fakeTransport) UploadPrivateFile(ctx context.Context, userID int64, path, name string) error {
	f.uploads = append(f.uploads, name)
	return nil
}

func (f *fakeTransport) SetGroupBan(ctx context.Context, groupID, userID int64, duration time.Duration) error {
	f.bans = append(f.bans, userID)
	return nil
}

func (f *fakeTransport) GroupMemberRole(ctx context.Context, groupID, userID int64) (string, error) {
	if f.roleErr != nil {
		return "", f.roleErr
	}
	role, ok := f.roles[userID]
	if !ok {
		role = "member"
	}
	return role, nil
}

func (f *fakeTransport) GroupRootFolders(ctx context.Context, groupID int64) ([]onebot.Folder, error) {
	return nil, nil
}

func (f *fakeTransport) CreateGroupFolder(ctx context.Context, groupID int64, name string) (string, error) {
	return "fake-folder", nil
}

func (f *fakeTransport) DeleteMessage(ctx context.Context, messageID int64) error {
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeTransport) lastMessage() string {
	if len(f.messages) == 0 {
		return ""
	}
	return f.messages[len(f.messages)-1]
}

func newTestBot(t *testing.T, src *fakeSource, tp *fakeTransport) (*Bot, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "data.json"), store.Options{
		DefaultGroupEnabled: true,
		DefaultUserLimit:    5,
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	cfg := &config.Config{Superusers: []int64{999}, UserLimits: 5, CardUserID: 999, CardNickname: "jm助手"}
	return New(cfg, st, src, tp, nil), st
}

func groupEvent(userID int64, text string) *onebot.Event {
	return &onebot.Event{
		PostType:    "message",
		MessageType: "group",
		GroupID:     100,
		UserID:      userID,
		RawMessage:  text,
		SenderRole:  "member",
	}
}

func privateEvent(userID int64, text string) *onebot.Event {
	return &onebot.Event{
		PostType:    "message",
		MessageType: "private",
		UserID:      userID,
		RawMessage:  text,
	}
}

func TestDownloadRejectsNonNumericID(t *testing.T) {
	src := &fakeSource{}
	tp := &fakeTransport{}
	b, _ := newTestBot(t, src, tp)

	b.handleEvent(context.Background(), privateEvent(1, "jm下载 abc"))
	if got := tp.lastMessage(); got != "请输入要下载的jm号" {
		t.Fatalf("reply = %q", got)
	}
	if src.detailCalls != 0 {
		t.Fatal("metadata must not be fetched for invalid input")
	}
}

func TestDownloadQuotaExhausted(t *testing.T) {
	src := &fakeSource{}
	tp := &fakeTransport{}
	b, st := newTestBot(t, src, tp)
	st.SetUserLimit(1, 0)

	b.handleEvent(context.Background(), privateEvent(1, "jm下载 123456"))
	if got := tp.lastMessage(); got != "你的下载次数已经用完了！" {
		t.Fatalf("reply = %q", got)
	}
	if src.detailCalls != 0 {
		t.Fatal("quota check must precede the metadata fetch")
	}
	if got := st.UserLimit(1); got != 0 {
		t.Fatalf("quota changed to %d on rejected request", got)
	}
}

func TestDownloadDecrementsQuotaOnce(t *testing.T) {
	src := &fakeSource{
		detail:       &jm.PhotoDetail{ID: "123456", Title: "t", Tags: []string{"全彩"}},
		downloadPath: "/nonexistent/123456.pdf",
	}
	tp := &fakeTransport{}
	b, st := newTestBot(t, src, tp)

	b.handleEvent(context.Background(), privateEvent(1, "jm下载 123456"))
	if got := st.UserLimit(1); got != 4 {
		t.Fatalf("quota = %d, want 4", got)
	}
	if src.downloadCalls != 1 {
		t.Fatalf("download calls = %d, want 1", src.downloadCalls)
	}
	if len(tp.uploads) != 1 || tp.uploads[0] != "t.pdf" {
		t.Fatalf("uploads = %v", tp.uploads)
	}
}

func TestDownloadRestrictedInGroup(t *testing.T) {
	src := &fakeSource{detail: &jm.PhotoDetail{ID: "136494", Title: "t"}}
	tp := &fakeTransport{}
	b, st := newTestBot(t, src, tp)

	b.handleEvent(context.Background(), groupEvent(1, "jm下载 136494"))
	if len(tp.bans) != 1 || tp.bans[0] != 1 {
		t.Fatalf("bans = %v, want user 1 banned", tp.bans)
	}
	if !st.IsUserBlacklisted(100, 1) {
		t.Fatal("requester must be blacklisted in the group")
	}
	if !strings.Contains(tp.lastMessage(), "黑名单") {
		t.Fatalf("reply = %q", tp.lastMessage())
	}
	if src.downloadCalls != 0 {
		t.Fatal("restricted album must not download")
	}
}

func TestDownloadRestrictedInPrivate(t *testing.T) {
	src := &fakeSource{detail: &jm.PhotoDetail{ID: "136494", Title: "t"}}
	tp := &fakeTransport{}
	b, st := newTestBot(t, src, tp)

	b.handleEvent(context.Background(), privateEvent(1, "jm下载 136494"))
	if got := tp.lastMessage(); got != "该本子（或其tag）被禁止下载！" {
		t.Fatalf("reply = %q", got)
	}
	if len(tp.bans) != 0 {
		t.Fatal("private requests must not trigger a ban")
	}
	if st.IsUserBlacklisted(100, 1) {
		t.Fatal("private requests must not blacklist")
	}
	// The restriction fires before the quota decrement.
	if got := st.UserLimit(1); got != 5 {
		t.Fatalf("quota = %d, want 5", got)
	}
}

func TestGateDisabledGroupSilent(t *testing.T) {
	src := &fakeSource{}
	tp := &fakeTransport{}
	b, st := newTestBot(t, src, tp)
	st.SetGroupEnabled(100, false)

	b.handleEvent(context.Background(), groupEvent(1, "jm下载 123456"))
	if len(tp.messages) != 0 {
		t.Fatalf("disabled group must be silent, got %v", tp.messages)
	}
}

func TestGateBlacklistedUserSilent(t *testing.T) {
	src := &fakeSource{}
	tp := &fakeTransport{}
	b, st := newTestBot(t, src, tp)
	st.AddBlacklist(100, 1)

	b.handleEvent(context.Background(), groupEvent(1, "jm搜索 测试"))
	if len(tp.messages) != 0 {
		t.Fatalf("blacklisted user must be ignored, got %v", tp.messages)
	}
}

func TestSearchEmptyResult(t *testing.T) {
	src := &fakeSource{searchResults: nil}
	tp := &fakeTransport{}
	b, _ := newTestBot(t, src, tp)

	b.handleEvent(context.Background(), privateEvent(1, "jm搜索 不存在的本子"))
	if got := tp.lastMessage(); got != "未搜索到本子" {
		t.Fatalf("reply = %q", got)
	}
	if tp.forwards != 0 {
		t.Fatal("empty result must not send a forward message")
	}
	if len(tp.deleted) != 1 {
		t.Fatal("the searching notice should be retracted")
	}
}

func TestSearchSendsForward(t *testing.T) {
	src := &fakeSource{searchResults: []jm.SearchResult{{ID: "100", Title: "a"}, {ID: "200", Title: "b"}}}
	tp := &fakeTransport{}
	b, _ := newTestBot(t, src, tp)

	b.handleEvent(context.Background(), privateEvent(1, "jm搜索 测试"))
	if tp.forwards != 1 {
		t.Fatalf("forwards = %d, want 1", tp.forwards)
	}
}

func TestAdminCannotBlacklistOwner(t *testing.T) {
	src := &fakeSource{}
	tp := &fakeTransport{roles: map[int64]string{2: "owner"}}
	b, st := newTestBot(t, src, tp)

	ev := groupEvent(1, "jm拉黑")
	ev.SenderRole = "admin"
	ev.Segments = []onebot.Segment{
		{Type: "text", Data: map[string]any{"text": "jm拉黑 "}},
		{Type: "at", Data: map[string]any{"qq": "2"}},
	}
	b.handleEvent(context.Background(), ev)
	if got := tp.lastMessage(); got != "权限不足" {
		t.Fatalf("reply = %q", got)
	}
	if st.IsUserBlacklisted(100, 2) {
		t.Fatal("owner must not be blacklisted by an admin")
	}
}

func TestOwnerBlacklistsMember(t *testing.T) {
	src := &fakeSource{}
	tp := &fakeTransport{roles: map[int64]string{}}
	b, st := newTestBot(t, src, tp)

	ev := groupEvent(1, "jm拉黑")
	ev.SenderRole = "owner"
	ev.Segments = []onebot.Segment{
		{Type: "text", Data: map[string]any{"text": "jm拉黑 "}},
		{Type: "at", Data: map[string]any{"qq": "2"}},
	}
	b.handleEvent(context.Background(), ev)
	if !st.IsUserBlacklisted(100, 2) {
		t.Fatal("owner should be able to blacklist a member")
	}
	if !strings.Contains(tp.lastMessage(), "已加入本群jm黑名单") {
		t.Fatalf("reply = %q", tp.lastMessage())
	}
}

func TestDisableRequiresConfirmation(t *testing.T) {
	src := &fakeSource{}
	tp := &fakeTransport{}
	b, st := newTestBot(t, src, tp)

	ev := groupEvent(1, "关闭jm")
	ev.SenderRole = "admin"
	b.handleEvent(context.Background(), ev)
	if !st.IsGroupEnabled(100) {
		t.Fatal("group must stay enabled until confirmed")
	}

	confirm := groupEvent(1, "确认")
	confirm.SenderRole = "admin"
	b.handleEvent(context.Background(), confirm)
	if st.IsGroupEnabled(100) {
		t.Fatal("group should be disabled after confirmation")
	}
	if got := tp.lastMessage(); got != "已禁用本群jm功能！" {
		t.Fatalf("reply = %q", got)
	}
}

func TestConfirmWithoutPendingIsIgnored(t *testing.T) {
	src := &fakeSource{}
	tp := &fakeTransport{}
	b, st := newTestBot(t, src, tp)

	confirm := groupEvent(1, "确认")
	confirm.SenderRole = "admin"
	b.handleEvent(context.Background(), confirm)
	if !st.IsGroupEnabled(100) {
		t.Fatal("stray confirmation must not disable the group")
	}
	if len(tp.messages) != 0 {
		t.Fatalf("stray confirmation must be silent, got %v", tp.messages)
	}
}

func TestSuperuserEnableGroups(t *testing.T) {
	src := &fakeSource{}
	tp := &fakeTransport{}
	b, st := newTestBot(t, src, tp)
	st.SetGroupEnabled(200, false)

	b.handleEvent(context.Background(), privateEvent(999, "jm启用群 200 abc 300"))
	if !st.IsGroupEnabled(200) || !st.IsGroupEnabled(300) {
		t.Fatal("listed groups should be enabled")
	}
	msg := tp.lastMessage()
	if !strings.Contains(msg, "200") || !strings.Contains(msg, "300") || strings.Contains(msg, "abc") {
		t.Fatalf("reply = %q", msg)
	}
}

func TestEnableGroupsIgnoresNonSuperuser(t *testing.T) {
	src := &fakeSource{}
	tp := &fakeTransport{}
	b, st := newTestBot(t, src, tp)
	st.SetGroupEnabled(200, false)

	b.handleEvent(context.Background(), privateEvent(1, "jm启用群 200"))
	if st.IsGroupEnabled(200) {
		t.Fatal("non superuser must not enable groups")
	}
	if len(tp.messages) != 0 {
		t.Fatalf("non superuser must be ignored, got %v", tp.messages)
	}
}

func TestRestrictIDs(t *testing.T) {
	src := &fakeSource{}
	tp := &fakeTransport{}
	b, st := newTestBot(t, src, tp)

	b.handleEvent(context.Background(), privateEvent(999, "jm禁用id 777777 notanid"))
	if !st.IsIDRestricted("777777") {
		t.Fatal("id should be restricted")
	}
	if !strings.Contains(tp.lastMessage(), "777777") {
		t.Fatalf("reply = %q", tp.lastMessage())
	}

	// Repeating the same id applies nothing.
	b.handleEvent(context.Background(), privateEvent(999, "jm禁用id 777777"))
	if got := tp.lastMessage(); got != "没有做任何处理" {
		t.Fatalf("reply = %q", got)
	}
}

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		in      string
		cmd     string
		arg     string
	}{
		{"jm下载 123", "jm下载", "123"},
		{"JM下载 123", "jm下载", "123"},
		{"jm搜索 foo bar", "jm搜索", "foo bar"},
		{"关闭jm", "关闭jm", ""},
		{"  ", "", ""},
	}
	for _, tt := range tests {
		cmd, arg := splitCommand(tt.in)
		if cmd != tt.cmd || arg != tt.arg {
			t.Errorf("splitCommand(%q) = (%q, %q), want (%q, %q)", tt.in, cmd, arg, tt.cmd, tt.arg)
		}
	}
}
