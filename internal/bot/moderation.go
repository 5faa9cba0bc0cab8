package bot

import (
	"context"
	"strconv"
	"strings"

	"github.com/misty02600/jmcomic-bot/internal/onebot"
)

func (b *Bot) handleBlacklistAdd(ctx context.Context, ev *onebot.Event) {
	target, ok := ev.FirstAt()
	if !ok {
		b.replyText(ctx, ev, "请使用@指定要拉黑的用户")
		return
	}
	if target == ev.UserID {
		b.replyText(ctx, ev, "你拉黑你自己？")
		return
	}
	if !b.canModerateTarget(ctx, ev, target) {
		b.replyText(ctx, ev, "权限不足")
		return
	}
	b.store.AddBlacklist(ev.GroupID, target)
	b.reply(ctx, ev, onebot.At(target), onebot.Text("已加入本群jm黑名单"))
}

func (b *Bot) handleBlacklistRemove(ctx context.Context, ev *onebot.Event) {
	target, ok := ev.FirstAt()
	if !ok {
		b.replyText(ctx, ev, "请使用@指定要解除拉黑的用户")
		return
	}
	if target == ev.UserID {
		b.replyText(ctx, ev, "想都别想！")
		return
	}
	if !b.canModerateTarget(ctx, ev, target) {
		b.replyText(ctx, ev, "权限不足")
		return
	}
	b.store.RemoveBlacklist(ev.GroupID, target)
	b.reply(ctx, ev, onebot.At(target), onebot.Text("已从本群jm黑名单中移除"))
}

func (b *Bot) handleBlacklistShow(ctx context.Context, ev *onebot.Event) {
	ids := b.store.Blacklist(ev.GroupID)
	if len(ids) == 0 {
		b.replyText(ctx, ev, "当前群的黑名单列表为空")
		return
	}
	segs := []onebot.Segment{onebot.Text("当前群的黑名单列表：\n")}
	for _, id := range ids {
		uid, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			continue
		}
		segs = append(segs, onebot.At(uid), onebot.Text("\n"))
	}
	b.reply(ctx, ev, segs...)
}

// canModerateTarget decides whether the sender outranks the target:
// superusers always, owners always, admins only against plain members.
// An unresolvable role denies the action.
func (b *Bot) canModerateTarget(ctx context.Context, ev *onebot.Event, target int64) bool {
	if b.cfg.IsSuperuser(ev.UserID) {
		return true
	}
	senderRole := ev.SenderRole
	if senderRole == "" {
		role, err := b.tp.GroupMemberRole(ctx, ev.GroupID, ev.UserID)
		if err != nil {
			b.log.Warn("获取群成员信息失败", "group", ev.GroupID, "user", ev.UserID, "err", err)
			return false
		}
		senderRole = role
	}
	if senderRole == "owner" {
		return true
	}
	if senderRole != "admin" {
		return false
	}
	targetRole, err := b.tp.GroupMemberRole(ctx, ev.GroupID, target)
	if err != nil {
		b.log.Warn("获取群成员信息失败", "group", ev.GroupID, "user", target, "err", err)
		return false
	}
	return targetRole != "admin" && targetRole != "owner"
}

func (b *Bot) handleSetFolder(ctx context.Context, ev *onebot.Event, arg string) {
	name := strings.TrimSpace(arg)
	if name == "" {
		b.replyText(ctx, ev, "请输入要设置的文件夹名称")
		return
	}

	folders, err := b.tp.GroupRootFolders(ctx, ev.GroupID)
	if err != nil {
		b.log.Warn("获取群文件夹失败", "group", ev.GroupID, "err", err)
		b.replyText(ctx, ev, "未找到该文件夹,创建文件夹失败")
		return
	}
	for _, f := range folders {
		if f.Name == name {
			b.store.SetGroupFolderID(ev.GroupID, f.ID)
			b.replyText(ctx, ev, "已设置本子储存文件夹")
			return
		}
	}

	folderID, err := b.tp.CreateGroupFolder(ctx, ev.GroupID, name)
	if err != nil {
		b.log.Warn("创建群文件夹失败", "group", ev.GroupID, "name", name, "err", err)
		b.replyText(ctx, ev, "未找到该文件夹,主动创建文件夹失败")
		return
	}
	b.store.SetGroupFolderID(ev.GroupID, folderID)
	b.replyText(ctx, ev, "已设置本子储存文件夹")
}
