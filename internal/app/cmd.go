package app

import (
	"fmt"
	"strings"
)

// Command はアプリケーションの起動モード（サブコマンド）。
type Command string

const (
	// CommandServe はJSON APIサーバー。引数なしの場合もこれになる。
	CommandServe Command = "serve"
	// CommandWorker は予約投稿の配信とクリーンアップを行う。
	CommandWorker Command = "worker"
	// CommandMigrate はDBマイグレーションを適用して終了する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はdistrolessコンテナのHEALTHCHECK用。設定を読まずに/healthを叩く。
	CommandHealthcheck Command = "healthcheck"
)

var commands = []Command{CommandServe, CommandWorker, CommandMigrate, CommandHealthcheck}

// ParseCommand は先頭の引数をサブコマンドとして解釈する。以降の引数は無視する。
// 未知のサブコマンドはエラーにする（誤ってAPIサーバーが起動しないように）。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 || args[0] == "" {
		return CommandServe, nil
	}
	for _, c := range commands {
		if args[0] == string(c) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown command %q (available: %s)", args[0], usage())
}

func usage() string {
	names := make([]string, len(commands))
	for i, c := range commands {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}
