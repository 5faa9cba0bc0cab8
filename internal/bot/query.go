package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/misty02600/jmcomic-bot/internal/jm"
	"github.com/misty02600/jmcomic-bot/internal/onebot"
)

func (b *Bot) handleQuery(ctx context.Context, ev *onebot.Event, arg string) {
	id := strings.TrimSpace(arg)
	if !isDigits(id) {
		b.replyText(ctx, ev, "请输入要查询的jm号")
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

	segs := []onebot.Segment{onebot.Text(formatDetail(detail))}
	if cover := b.blurredCover(ctx, detail.ID); cover != nil {
		segs = append(segs, onebot.ImageBytes(cover))
	}

	if err := b.sendForward(ctx, ev, []onebot.ForwardNode{b.cardNode(segs...)}); err != nil {
		b.log.Warn("查询结果发送失败", "album", detail.ID, "err", err)
		b.replyText(ctx, ev, "查询结果发送失败")
	}
}

// blurredCover fetches and blurs an album cover, returning nil on any
// failure; a missing cover never fails the surrounding flow.
func (b *Bot) blurredCover(ctx context.Context, id string) []byte {
	raw, err := b.src.FetchCover(ctx, id)
	if err != nil {
		b.log.Debug("封面获取失败", "album", id, "err", err)
		return nil
	}
	blurred, err := jm.BlurCover(raw)
	if err != nil {
		b.log.Debug("封面模糊处理失败", "album", id, "err", err)
		return nil
	}
	return blurred
}

func formatDetail(detail *jm.PhotoDetail) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "jm号: %s\n标题: %s\n", detail.ID, detail.Title)
	if len(detail.Authors) > 0 {
		fmt.Fprintf(&sb, "作者: %s\n", strings.Join(detail.Authors, ", "))
	}
	fmt.Fprintf(&sb, "tags: %v", detail.Tags)
	return sb.String()
}
