// Package coedit 提供无服务器的多人实时协同文本编辑
//
// 同一房间内的节点通过公共中继交换 WebRTC 信令，之后在点对点数据通道上
// 同步复制文档（CRDT）与在线状态（光标、名字、颜色）。中继只转发信令，
// 文档内容不经过任何服务器。
//
// # 快速开始
//
//	import "github.com/dep2p/go-coedit"
//
//	sess, err := coedit.Start(ctx,
//	    coedit.WithRoom("notes"),
//	    coedit.WithDisplayName("ann"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sess.Close()
//
//	_ = sess.Insert(0, "hello")
//	fmt.Println(sess.Text())
//
// # 组件
//
//	┌──────────────────────────────────────────────────────────┐
//	│  Session            coedit.Start()                       │
//	├──────────────────────────────────────────────────────────┤
//	│  binding            编辑器 <-> 文档，远端光标装饰          │
//	│  channel            sync / update / awareness 帧          │
//	│  signaling          announce / offer / answer / ice       │
//	├──────────────────────────────────────────────────────────┤
//	│  document presence  复制文档与在线状态                     │
//	│  relay ice webrtc   中继后端、STUN 服务器、pion 连接        │
//	│  eventloop          单 goroutine 事件循环                  │
//	└──────────────────────────────────────────────────────────┘
//
// # 文件组织
//
//	coedit/
//	├── doc.go        # 包文档
//	├── version.go    # 版本信息
//	├── session.go    # Session、Start、Close
//	├── editing.go    # 文本、选区、名字与颜色
//	├── observe.go    # 对端、通道、指标、致命错误
//	├── options.go    # WithXxx 配置选项
//	├── fx.go         # Fx 应用组装
//	└── errors.go     # 错误定义
package coedit
