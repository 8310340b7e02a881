// Package colorutil 生成参与者的显示颜色
package colorutil

import (
	"fmt"
	"math"
	"math/rand"
	"regexp"
)

var hexColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// RandomHSL 返回可读性较好的随机 CSS hsl() 颜色
func RandomHSL() string {
	return fmt.Sprintf("hsl(%.1f, %.1f%%, %.1f%%)",
		rand.Float64()*360, 50+rand.Float64()*30, 35+rand.Float64()*30)
}

// RandomRGB 返回 #rrggbb 形式的随机颜色
//
// 饱和度 50%-80%，亮度 35%-65%，保证白色标签文字可读。
func RandomRGB() string {
	r, g, b := HSLToRGB(rand.Float64()*360, .50+rand.Float64()*.30, .35+rand.Float64()*.30)
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

// ValidHexColor 检查是否为 #rrggbb 形式
func ValidHexColor(s string) bool {
	return hexColorPattern.MatchString(s)
}

// HSLToRGB 将 HSL 转换为 0-255 的 RGB 分量
//
// hue 取值 [0, 360)，saturation 与 lightness 取值 [0, 1]。
func HSLToRGB(hue, saturation, lightness float64) (uint8, uint8, uint8) {
	chroma := (1 - math.Abs(2*lightness-1)) * saturation
	huePrime := hue / 60
	second := chroma * (1 - math.Abs(math.Mod(huePrime, 2)-1))

	var red, green, blue float64
	switch int(math.Floor(huePrime)) {
	case 1:
		red, green = second, chroma
	case 2:
		green, blue = chroma, second
	case 3:
		green, blue = second, chroma
	case 4:
		red, blue = second, chroma
	case 5:
		red, blue = chroma, second
	default:
		red, green = chroma, second
	}

	m := lightness - chroma/2
	return channel(red + m), channel(green + m), channel(blue + m)
}

func channel(v float64) uint8 {
	c := math.Abs(math.Round(v * 255))
	if c > 255 {
		c = 255
	}
	return uint8(c)
}
