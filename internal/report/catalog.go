package report

import (
	"errors"
	"fmt"
	"strings"
	"text/template"
)

// ErrUnknownLanguage is returned for a language with no catalogue.
var ErrUnknownLanguage = errors.New("unknown message language")

// Key names one user-facing message.
type Key string

const (
	KeyChecking      Key = "checking"
	KeyMissing       Key = "missing"
	KeyCheckPassed   Key = "check_passed"
	KeyInstalling    Key = "installing"
	KeyInstallFailed Key = "install_failed"
	KeyInstalled     Key = "installed"
	KeyPause         Key = "pause"
)

const (
	LangZH = "zh"
	LangEN = "en"
)

var sources = map[string]map[Key]string{
	LangZH: {
		KeyChecking:    "正在检查Python环境...",
		KeyMissing:     "错误：未找到Python，请先安装Python {{.MinVersion}}或更高版本\n下载地址：{{.DownloadURL}}",
		KeyCheckPassed: "Python环境检查通过",
		KeyInstalling:  "正在安装依赖包...",
		KeyInstallFailed: "依赖包安装失败，请检查网络连接或手动安装\n" +
			"手动安装命令：{{.FallbackCommand}}",
		KeyInstalled: "依赖包安装成功！\n\n使用方法：\n" +
			"1. 双击 {{.GUIScript}} 启动图形界面\n" +
			"2. 命令行使用：{{.Interpreter}} {{.ToolScript}} 图片文件夹路径\n" +
			"3. 查看帮助：{{.Interpreter}} {{.ToolScript}} --help",
		KeyPause: "请按回车键继续. . .",
	},
	LangEN: {
		KeyChecking:    "Checking Python environment...",
		KeyMissing:     "Error: Python not found. Please install Python {{.MinVersion}} or later\nDownload: {{.DownloadURL}}",
		KeyCheckPassed: "Python environment check passed",
		KeyInstalling:  "Installing dependencies...",
		KeyInstallFailed: "Dependency installation failed. Check your network connection or install manually\n" +
			"Manual install command: {{.FallbackCommand}}",
		KeyInstalled: "Dependencies installed successfully!\n\nUsage:\n" +
			"1. Double-click {{.GUIScript}} to launch the GUI\n" +
			"2. Command line: {{.Interpreter}} {{.ToolScript}} <image folder>\n" +
			"3. Help: {{.Interpreter}} {{.ToolScript}} --help",
		KeyPause: "Press Enter to continue . . .",
	},
}

// Catalog holds the parsed templates of one language.
type Catalog struct {
	Lang string
	tmpl map[Key]*template.Template
}

// Languages lists the available catalogue languages.
func Languages() []string { return []string{LangZH, LangEN} }

// LoadCatalog parses the catalogue for lang ("zh", "en"; "zh-CN" style tags
// are reduced to their primary subtag).
func LoadCatalog(lang string) (Catalog, error) {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	if lang == "" {
		lang = LangZH
	}
	src, ok := sources[lang]
	if !ok {
		return Catalog{}, fmt.Errorf("%w: %q", ErrUnknownLanguage, lang)
	}
	c := Catalog{Lang: lang, tmpl: make(map[Key]*template.Template, len(src))}
	for k, s := range src {
		t, err := template.New(string(k)).Option("missingkey=error").Parse(s)
		if err != nil {
			return Catalog{}, fmt.Errorf("parse %s/%s: %w", lang, k, err)
		}
		c.tmpl[k] = t
	}
	return c, nil
}

// Render fills the message identified by k.
func (c Catalog) Render(k Key, p Params) (string, error) {
	t, ok := c.tmpl[k]
	if !ok {
		return "", fmt.Errorf("no message %q in %s catalogue", k, c.Lang)
	}
	var b strings.Builder
	if err := t.Execute(&b, p); err != nil {
		return "", fmt.Errorf("render %s: %w", k, err)
	}
	return b.String(), nil
}
