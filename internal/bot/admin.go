package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/misty02600/jmcomic-bot/internal/onebot"
)

func (b *Bot) handleEnableGroups(ctx context.Context, ev *onebot.Event, arg string, enable bool) {
	applied := make([]string, 0, 4)
	for _, tok := range strings.Fields(arg) {
		if !isDigits(tok) {
			continue
		}
		gid, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			continue
		}
		b.store.SetGroupEnabled(gid, enable)
		applied = append(applied, tok)
	}
	if len(applied) == 0 {
		b.replyText(ctx, ev, "没有做任何处理。")
		return
	}
	header := "以下群已启用插件功能：\n"
	if !enable {
		header = "以下群已禁用插件功能：\n"
	}
	b.replyText(ctx, ev, header+strings.Join(applied, "\n"))
}

func (b *Bot) handleEnableHere(ctx context.Context, ev *onebot.Event) {
	b.store.SetGroupEnabled(ev.GroupID, true)
	b.replyText(ctx, ev, "已启用本群jm功能！")
}

func confirmKey(ev *onebot.Event) string {
	return fmt.Sprintf("g%d:u%d", ev.GroupID, ev.UserID)
}

func (b *Bot) handleDisableHere(ctx context.Context, ev *onebot.Event) {
	b.mu.Lock()
	b.pending[confirmKey(ev)] = time.Now().Add(confirmWindow)
	b.mu.Unlock()
	b.replyText(ctx, ev, "禁用后只能请求神秘存在再次开启该功能！确认要关闭吗？发送'确认'关闭")
}

func (b *Bot) handleDisableConfirm(ctx context.Context, ev *onebot.Event) {
	key := confirmKey(ev)
	b.mu.Lock()
	deadline, ok := b.pending[key]
	if ok {
		delete(b.pending, key)
	}
	b.mu.Unlock()
	if !ok || time.Now().After(deadline) {
		return
	}
	b.store.SetGroupEnabled(ev.GroupID, false)
	b.replyText(ctx, ev, "已禁用本群jm功能！")
}

func (b *Bot) handleRestrictIDs(ctx context.Context, ev *onebot.Event, arg string) {
	applied := make([]string, 0, 4)
	for _, tok := range strings.Fields(arg) {
		if !isDigits(tok) {
			continue
		}
		if b.store.IsIDRestricted(tok) {
			continue
		}
		b.store.AddRestrictedID(tok)
		applied = append(applied, tok)
	}
	if len(applied) == 0 {
		b.replyText(ctx, ev, "没有做任何处理")
		return
	}
	b.replyText(ctx, ev, "以下jm号已加入禁止下载列表：\n"+strings.Join(applied, "\n"))
}

func (b *Bot) handleRestrictTags(ctx context.Context, ev *onebot.Event, arg string) {
	applied := make([]string, 0, 4)
	for _, tok := range strings.Fields(arg) {
		if b.store.IsTagRestricted(tok) {
			continue
		}
		b.store.AddRestrictedTag(tok)
		applied = append(applied, tok)
	}
	if len(applied) == 0 {
		b.replyText(ctx, ev, "没有做任何处理")
		return
	}
	b.replyText(ctx, ev, "以下tag已加入禁止下载列表：\n"+strings.Join(applied, "\n"))
}
