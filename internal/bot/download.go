package bot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/misty02600/jmcomic-bot/internal/jm"
	"github.com/misty02600/jmcomic-bot/internal/onebot"
)

func (b *Bot) handleDownload(ctx context.Context, ev *onebot.Event, arg string) {
	id := strings.TrimSpace(arg)
	if !isDigits(id) {
		b.replyText(ctx, ev, "请输入要下载的jm号")
		return
	}

	super := b.cfg.IsSuperuser(ev.UserID)
	if !super && b.store.UserLimit(ev.UserID) <= 0 {
		b.replyAt(ctx, ev, "你的下载次数已经用完了！")
		return
	}

	mctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	detail, err := b.src.GetPhotoDetail(mctx, id)
	cancel()
	if err != nil {
		if errors.Is(err, jm.ErrNotFound) {
			b.replyText(ctx, ev, "未查找到本子")
			return
		}
		b.log.Warn("本子查询失败", "album", id, "err", err)
		b.replyText(ctx, ev, "查询时发生错误")
		return
	}

	if b.store.IsContentRestricted(detail.ID, detail.Tags) {
		if ev.IsGroup() {
			// The ban is best-effort; blacklisting is what actually
			// keeps the user out.
			if err := b.tp.SetGroupBan(ctx, ev.GroupID, ev.UserID, 24*time.Hour); err != nil {
				b.log.Warn("禁言失败", "group", ev.GroupID, "user", ev.UserID, "err", err)
			}
			b.store.AddBlacklist(ev.GroupID, ev.UserID)
			b.replyAt(ctx, ev, "该本子（或其tag）被禁止下载!你已被加入本群jm黑名单")
			return
		}
		b.replyText(ctx, ev, "该本子（或其tag）被禁止下载！")
		return
	}

	if super {
		b.replyText(ctx, ev, fmt.Sprintf("查询到jm%s: %s\ntags:%v\n开始下载...", detail.ID, detail.Title, detail.Tags))
	} else {
		b.store.DecreaseUserLimit(ev.UserID, 1)
		remaining := b.store.UserLimit(ev.UserID)
		b.replyText(ctx, ev, fmt.Sprintf("查询到jm%s: %s\ntags:%v\n开始下载...你本周还有%d次下载次数！", detail.ID, detail.Title, detail.Tags, remaining))
	}

	path, err := b.src.Download(ctx, detail)
	if err != nil {
		b.log.Warn("本子下载失败", "album", detail.ID, "err", err)
		b.replyText(ctx, ev, "下载失败")
		return
	}

	name := sanitizeFileName(detail.Title)
	if name == "" {
		name = "jm" + detail.ID
	}
	name += ".pdf"

	if ev.IsGroup() {
		err = b.tp.UploadGroupFile(ctx, ev.GroupID, path, name, b.store.GroupFolderID(ev.GroupID))
	} else {
		err = b.tp.UploadPrivateFile(ctx, ev.UserID, path, name)
	}
	if err != nil {
		b.log.Warn("文件发送失败", "album", detail.ID, "err", err)
		b.replyText(ctx, ev, "发送文件失败")
		return
	}
	if fi, statErr := os.Stat(path); statErr == nil {
		b.log.Info("本子发送完成", "album", detail.ID, "file", name, "size", humanize.IBytes(uint64(fi.Size())))
	}
}

// sanitizeFileName strips characters the group file service rejects.
func sanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', '\n', '\r', '\t':
			return '_'
		}
		return r
	}, name)
}
