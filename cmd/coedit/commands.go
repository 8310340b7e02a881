package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	coedit "github.com/dep2p/go-coedit"
)

var errUsage = errors.New("参数错误，:help 查看用法")

const helpText = `命令：
  :p                      打印文档
  :i <offset> <text>      在 offset 处插入
  :d <offset> <length>    从 offset 处删除
  :sel <anchor> <head>    设置选区
  :name [name]            修改显示名（为空恢复默认）
  :color <#rrggbb>        修改光标颜色
  :users                  列出房间内用户
  :peers                  列出连接
  :save [dir] [ext]       保存为 "Room <room>.<ext>"
  :q                      退出`

// execute 执行一行输入，返回是否退出
func execute(sess *coedit.Session, line string) (bool, error) {
	if !strings.HasPrefix(line, ":") {
		return false, appendLine(sess, line)
	}

	cmd, rest, _ := strings.Cut(strings.TrimPrefix(line, ":"), " ")
	switch cmd {
	case "q", "quit":
		return true, nil
	case "help", "h":
		fmt.Println(helpText)
	case "p":
		text, err := sess.Text()
		if err != nil {
			return false, err
		}
		fmt.Println(text)
	case "i":
		offStr, text, ok := strings.Cut(rest, " ")
		off, err := strconv.Atoi(offStr)
		if !ok || err != nil {
			return false, errUsage
		}
		return false, sess.Insert(off, unescape(text))
	case "d":
		args, err := ints(rest, 2)
		if err != nil {
			return false, err
		}
		return false, sess.Delete(args[0], args[1])
	case "sel":
		args, err := ints(rest, 2)
		if err != nil {
			return false, err
		}
		return false, sess.Select(args[0], args[1])
	case "name":
		return false, sess.SetName(strings.TrimSpace(rest))
	case "color":
		return false, sess.SetColor(strings.TrimSpace(rest))
	case "users":
		return false, printUsers(sess)
	case "peers":
		return false, printPeers(sess)
	case "save":
		args := strings.Fields(rest)
		dir, ext := ".", ""
		if len(args) > 0 {
			dir = args[0]
		}
		if len(args) > 1 {
			ext = args[1]
		}
		path, err := sess.SaveFile(dir, ext)
		if err != nil {
			return false, err
		}
		fmt.Printf("  已保存 %s\n", path)
	default:
		return false, fmt.Errorf("未知命令 :%s", cmd)
	}
	return false, nil
}

// appendLine 把一行文本追加到文档末尾
func appendLine(sess *coedit.Session, line string) error {
	text, err := sess.Text()
	if err != nil {
		return err
	}
	if text != "" && !strings.HasSuffix(text, "\n") {
		line = "\n" + line
	}
	return sess.Insert(utf8.RuneCountInString(text), line)
}

func ints(s string, n int) ([]int, error) {
	fields := strings.Fields(s)
	if len(fields) != n {
		return nil, errUsage
	}
	out := make([]int, n)
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, errUsage
		}
		out[i] = v
	}
	return out, nil
}

// unescape 支持 \n 与 \t
func unescape(s string) string {
	return strings.NewReplacer(`\n`, "\n", `\t`, "\t").Replace(s)
}

func printUsers(sess *coedit.Session) error {
	users, err := sess.Users()
	if err != nil {
		return err
	}
	for _, u := range users {
		mark := " "
		if u.Local {
			mark = "*"
		}
		fmt.Printf("  %s %-12s %s  %s (%d)\n", mark, u.Name, u.Color, u.PeerID, u.ClientID)
	}
	return nil
}

func printPeers(sess *coedit.Session) error {
	peers, err := sess.Peers()
	if err != nil {
		return err
	}
	if len(peers) == 0 {
		fmt.Println("  (无连接)")
	}
	for _, p := range peers {
		fmt.Printf("  %s  %-11s %-12s %s\n", p.ID, p.State, p.ConnectionState, p.Role)
	}
	channels, err := sess.Channels()
	if err != nil {
		return err
	}
	for _, c := range channels {
		fmt.Printf("  通道 %s  in=%d out=%d dropped=%d\n", c.Peer, c.FramesIn, c.FramesOut, c.Dropped)
	}
	return nil
}
