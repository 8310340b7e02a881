package coedit

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dep2p/go-coedit/internal/core/presence"
	"github.com/dep2p/go-coedit/internal/util/colorutil"
	"github.com/dep2p/go-coedit/pkg/interfaces"
)

// defaultSaveExt 保存文件的默认扩展名
const defaultSaveExt = "txt"

// ============================================================================
//                              文本
// ============================================================================

// Text 返回文档当前文本
func (s *Session) Text() (string, error) {
	var text string
	err := s.do(func() {
		text = s.doc.Text().String()
	})
	return text, err
}

// Surface 返回绑定的编辑表面
//
// 表面只能在事件循环上访问，使用 Do。
func (s *Session) Surface() interfaces.Surface {
	return s.surface
}

// Do 在事件循环上操作编辑表面
//
// 对表面的修改与用户输入一样经由绑定写入文档并广播。
func (s *Session) Do(fn func(interfaces.Surface)) error {
	return s.do(func() {
		fn(s.surface)
	})
}

// Insert 在 offset 处插入文本（按 rune 计）
func (s *Session) Insert(offset int, text string) error {
	var editErr error
	if err := s.Do(func(sf interfaces.Surface) {
		editErr = sf.ApplyEdits([]interfaces.TextEdit{{Offset: offset, Text: text}})
	}); err != nil {
		return err
	}
	return editErr
}

// Delete 从 offset 处删除 length 个字符
func (s *Session) Delete(offset, length int) error {
	var editErr error
	if err := s.Do(func(sf interfaces.Surface) {
		editErr = sf.ApplyEdits([]interfaces.TextEdit{{Offset: offset, Length: length}})
	}); err != nil {
		return err
	}
	return editErr
}

// Select 设置本地选区，anchor 与 head 为线性偏移
func (s *Session) Select(anchor, head int) error {
	return s.Do(func(sf interfaces.Surface) {
		sf.SetSelection(interfaces.Selection{
			Anchor: sf.PositionAt(anchor),
			Head:   sf.PositionAt(head),
		})
	})
}

// ============================================================================
//                              身份
// ============================================================================

// SetName 修改显示名，空字符串恢复默认名
func (s *Session) SetName(name string) error {
	if name == "" {
		name = s.peer.ShortName()
	}
	return s.do(func() {
		s.presence.UpdateLocal(func(st *presence.State) {
			st.Name = name
		})
	})
}

// SetColor 修改光标颜色，必须是 #rrggbb
func (s *Session) SetColor(color string) error {
	if !colorutil.ValidHexColor(color) {
		return ErrInvalidColor
	}
	return s.do(func() {
		s.presence.UpdateLocal(func(st *presence.State) {
			st.Color = color
		})
	})
}

// Name 返回当前显示名
func (s *Session) Name() (string, error) {
	var name string
	err := s.do(func() {
		if st := s.presence.LocalState(); st != nil {
			name = st.Name
		}
	})
	return name, err
}

// ============================================================================
//                              保存
// ============================================================================

// Save 把当前文本写入 w
func (s *Session) Save(w io.Writer) error {
	text, err := s.Text()
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, text)
	return err
}

// SaveFileName 返回保存文件名 "Room <room>.<ext>"
func (s *Session) SaveFileName(ext string) string {
	if ext == "" {
		ext = defaultSaveExt
	}
	return fmt.Sprintf("Room %s.%s", s.cfg.Room, ext)
}

// SaveFile 把当前文本保存到 dir 下，返回文件路径
func (s *Session) SaveFile(dir, ext string) (string, error) {
	text, err := s.Text()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, s.SaveFileName(ext))
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("save %s: %w", path, err)
	}
	log.Info("文档已保存", "path", path)
	return path, nil
}
