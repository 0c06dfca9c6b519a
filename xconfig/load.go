package xconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/xiaoshicae/xinfer/xerror"
	"github.com/xiaoshicae/xinfer/xhook"
	"github.com/xiaoshicae/xinfer/xutil"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

const (
	configLocationArgKey = "config"
	configLocationEnvKey = "XINFER_CONFIG_LOCATION"

	profilesActiveArgKey    = "profile"
	profilesActiveEnvKey    = "XINFER_PROFILES_ACTIVE"
	profilesActiveConfigKey = "Server.Profiles.Active"

	dotEnvFileName = ".env"
)

// 配置文件搜索路径，按优先级排序
var configLocationPaths = []string{
	"./application.yml",
	"./application.yaml",
	"./conf/application.yml",
	"./conf/application.yaml",
	"./config/application.yml",
	"./config/application.yaml",
	"./../conf/application.yml",
	"./../conf/application.yaml",
}

var envPlaceholderRegex = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func init() {
	xhook.BeforeStart(initXConfig, xhook.Order(1))
}

func initXConfig() error {
	if loaded() {
		xutil.InfoIfEnableDebug("XInfer config already loaded, skip")
		return nil
	}
	location := detectConfigLocation()
	if location == "" {
		xutil.WarnIfEnableDebug("XInfer config file not found, use default config")
		return nil
	}
	return Load(location)
}

// Load 从指定路径加载配置，覆盖已加载的配置
func Load(location string) error {
	if err := loadDotEnvIfExist(location); err != nil {
		return xerror.Newf("xconfig", "Load", "load .env failed, err=[%v]", err)
	}
	vp, err := parseConfig(location)
	if err != nil {
		return xerror.Newf("xconfig", "Load", "location=[%s], err=[%v]", location, err)
	}
	printFinalConfig(vp)
	setViperConfig(vp)
	return nil
}

func detectConfigLocation() string {
	if loc, _ := xutil.GetConfigFromArgs(configLocationArgKey); loc != "" {
		xutil.InfoIfEnableDebug("XInfer detect config location [%s] from arg", loc)
		return loc
	}
	if loc := os.Getenv(configLocationEnvKey); loc != "" {
		xutil.InfoIfEnableDebug("XInfer detect config location [%s] from env", loc)
		return loc
	}
	for _, loc := range configLocationPaths {
		if xutil.FileExist(loc) {
			xutil.InfoIfEnableDebug("XInfer detect config location [%s] from current dir", loc)
			return loc
		}
	}
	return ""
}

func detectProfilesActive(vp *viper.Viper) string {
	if pa, _ := xutil.GetConfigFromArgs(profilesActiveArgKey); pa != "" {
		return pa
	}
	if pa := os.Getenv(profilesActiveEnvKey); pa != "" {
		return pa
	}
	if vp == nil {
		return ""
	}
	return expandPlaceholder(vp.GetString(profilesActiveConfigKey))
}

func loadDotEnvIfExist(location string) error {
	p := filepath.Join(filepath.Dir(location), dotEnvFileName)
	if xutil.FileExist(p) {
		return godotenv.Load(p)
	}
	return nil
}

func parseConfig(location string) (*viper.Viper, error) {
	base, err := loadLocalConfig(location)
	if err != nil {
		return nil, err
	}

	if pa := detectProfilesActive(base); pa != "" {
		profileLocation, err := toProfilesActiveConfigLocation(location, pa)
		if err != nil {
			return nil, err
		}
		if !xutil.FileExist(profileLocation) {
			xutil.WarnIfEnableDebug("XInfer profile config [%s] not found, ignore", profileLocation)
		} else {
			overlay, err := loadLocalConfig(profileLocation)
			if err != nil {
				return nil, fmt.Errorf("load profile config failed, location=[%s], err=[%v]", profileLocation, err)
			}
			base = mergeProfilesViperConfig(base, overlay)
		}
	}

	expandEnvPlaceholders(base)
	return base, nil
}

func loadLocalConfig(location string) (*viper.Viper, error) {
	vp := viper.New()
	vp.SetConfigFile(location)
	if err := vp.ReadInConfig(); err != nil {
		return nil, err
	}
	return vp, nil
}

// toProfilesActiveConfigLocation conf/application.yml -> conf/application-dev.yml
func toProfilesActiveConfigLocation(location string, pa string) (string, error) {
	ext := filepath.Ext(location)
	if ext == "" {
		return "", fmt.Errorf("config file name [%s] has no extension", location)
	}
	return strings.TrimSuffix(location, ext) + "-" + pa + ext, nil
}

// mergeProfilesViperConfig overlay 深度覆盖 base，Server.Profiles 只以 base 为准
func mergeProfilesViperConfig(base, overlay *viper.Viper) *viper.Viper {
	vp := viper.New()
	_ = vp.MergeConfigMap(base.AllSettings())

	settings := overlay.AllSettings()
	if server, ok := settings["server"].(map[string]any); ok {
		delete(server, "profiles")
	}
	_ = vp.MergeConfigMap(settings)
	return vp
}

// expandEnvPlaceholders 展开 ${VAR} 与 ${VAR:-default}
func expandEnvPlaceholders(vp *viper.Viper) {
	for _, key := range vp.AllKeys() {
		s, err := cast.ToStringE(vp.Get(key))
		if err != nil || s == "" {
			continue
		}
		if expanded := expandPlaceholder(s); expanded != s {
			vp.Set(key, expanded)
		}
	}
}

func expandPlaceholder(s string) string {
	return envPlaceholderRegex.ReplaceAllStringFunc(s, func(match string) string {
		m := envPlaceholderRegex.FindStringSubmatch(match)
		if len(m) < 2 {
			return match
		}
		if v := os.Getenv(m[1]); v != "" {
			return v
		}
		if len(m) >= 3 {
			return m[2]
		}
		return ""
	})
}

func printFinalConfig(vp *viper.Viper) {
	if !xutil.EnableDebug() {
		return
	}
	settings := vp.AllSettings()
	fmt.Printf("\n***************** XInfer load config *****************\n%s\n******************************************************\n\n",
		xutil.ToJsonStringIndent(settings))
}
