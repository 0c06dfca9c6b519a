package xgin

import (
	"fmt"

	"github.com/xiaoshicae/xinfer/xconfig"
)

// PrintBanner 打印启动banner
func PrintBanner() {
	fmt.Println(bannerTxt)
	coloredName := fmt.Sprintf("\x1b[32m%s\x1b[0m", "::     XInfer     ::")
	fmt.Printf("   %s         (%s %s)\n\n", coloredName, xconfig.GetServerName(), xconfig.GetServerVersion())
}

var bannerTxt = `
 __  __  ___            __
 \ \/ / |_ _| _ __     / _|  ___  _ __
  \  /   | | | '_ \   | |_  / _ \| '__|
  /  \   | | | | | |  |  _||  __/| |
 /_/\_\ |___||_| |_|  |_|   \___||_|`
