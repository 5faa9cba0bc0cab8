package bot

import (
	"context"

	"github.com/misty02600/jmcomic-bot/internal/onebot"
)

const helpText = `jm指令列表：
jm下载 <jm号>  下载本子并发送PDF（每周限额）
jm查询 <jm号>  查询本子信息
jm搜索 <关键词>  搜索本子
jm帮助  显示本帮助
管理指令：
jm设置文件夹 <名称>  设置群文件储存文件夹
jm拉黑 @用户 / jm解除拉黑 @用户 / jm黑名单
关闭jm（需发送'确认'）
超级用户指令：
开启jm / jm启用群 <群号...> / jm禁用群 <群号...>
jm禁用id <jm号...> / jm禁用tag <tag...>`

func (b *Bot) handleHelp(ctx context.Context, ev *onebot.Event) {
	b.replyText(ctx, ev, helpText)
}
