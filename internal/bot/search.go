package bot

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/misty02600/jmcomic-bot/internal/onebot"
)

func (b *Bot) handleSearch(ctx context.Context, ev *onebot.Event, arg string) {
	query := strings.TrimSpace(arg)
	if query == "" {
		b.replyText(ctx, ev, "请输入要搜索的内容")
		return
	}

	var noticeID int64
	if ev.IsGroup() {
		noticeID, _ = b.tp.SendGroupMessage(ctx, ev.GroupID, onebot.Text("正在搜索中..."))
	} else {
		noticeID, _ = b.tp.SendPrivateMessage(ctx, ev.UserID, onebot.Text("正在搜索中..."))
	}
	retract := func() {
		if noticeID != 0 {
			if err := b.tp.DeleteMessage(ctx, noticeID); err != nil {
				b.log.Debug("撤回提示消息失败", "err", err)
			}
		}
	}

	mctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	results, err := b.src.SearchSite(mctx, query)
	cancel()
	if err != nil {
		retract()
		b.log.Warn("搜索失败", "query", query, "err", err)
		b.replyText(ctx, ev, "搜索失败")
		return
	}
	if len(results) == 0 {
		retract()
		b.replyText(ctx, ev, "未搜索到本子")
		return
	}

	// Covers fetch in parallel; the jm client caps the fan-out.
	covers := make([][]byte, len(results))
	g, gctx := errgroup.WithContext(ctx)
	for i, res := range results {
		g.Go(func() error {
			covers[i] = b.blurredCover(gctx, res.ID)
			return nil
		})
	}
	_ = g.Wait()

	nodes := make([]onebot.ForwardNode, 0, len(results))
	for i, res := range results {
		segs := []onebot.Segment{onebot.Text(fmt.Sprintf("jm号: %s\n标题: %s", res.ID, res.Title))}
		if covers[i] != nil {
			segs = append(segs, onebot.ImageBytes(covers[i]))
		}
		nodes = append(nodes, b.cardNode(segs...))
	}

	retract()
	if err := b.sendForward(ctx, ev, nodes); err != nil {
		b.log.Warn("搜索结果发送失败", "query", query, "err", err)
		b.replyText(ctx, ev, "搜索结果发送失败")
	}
}
