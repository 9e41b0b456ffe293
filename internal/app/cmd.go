package app

import (
	"fmt"
	"strings"
)

// Command はmentorbridgeのサブコマンド。
type Command string

const (
	// CommandServe はブリッジAPIを起動する。引数なしの場合もこれになる。
	CommandServe Command = "serve"
	// CommandMigrate は BRIDGE_BACKEND=postgres 用のテーブルを作成する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は起動中のAPIの /health を叩いて終了コードで結果を返す。
	// distrolessイメージにはcurlが無いため、DockerのHEALTHCHECKから使う。
	CommandHealthcheck Command = "healthcheck"
)

var commands = []Command{CommandServe, CommandMigrate, CommandHealthcheck}

// ParseCommand はos.Args[1:]の先頭からサブコマンドを取り出す。
// 知らないサブコマンドは打ち間違いの可能性が高いため、serveにはせずエラーにする。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 || args[0] == "" {
		return CommandServe, nil
	}

	for _, c := range commands {
		if args[0] == string(c) {
			return c, nil
		}
	}

	names := make([]string, len(commands))
	for i, c := range commands {
		names[i] = string(c)
	}
	return "", fmt.Errorf("unknown command %q (available: %s)", args[0], strings.Join(names, ", "))
}
