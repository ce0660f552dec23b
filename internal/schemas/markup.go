package schemas

import (
	"errors"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Жадный шаблон: от первого <svg до последнего </svg>
var svgBlockRegex = regexp.MustCompile(`(?i)<svg[\s\S]*</svg>`)

// Разрешенные элементы SVG (в нижнем регистре, как их отдает токенизатор).
// Все остальное вырезается, поэтому браузер не выходит из foreign content.
var allowedElements = map[string]bool{
	"svg": true, "g": true, "defs": true, "symbol": true, "use": true,
	"title": true, "desc": true, "style": true, "a": true,
	"path": true, "rect": true, "circle": true, "ellipse": true, "line": true,
	"polyline": true, "polygon": true, "text": true, "tspan": true, "textpath": true,
	"lineargradient": true, "radialgradient": true, "stop": true,
	"pattern": true, "clippath": true, "mask": true, "marker": true, "image": true,
	"filter": true, "fegaussianblur": true, "feoffset": true, "feblend": true,
	"fecolormatrix": true, "femerge": true, "femergenode": true, "feflood": true,
	"fecomposite": true, "feturbulence": true, "fedisplacementmap": true,
	"fedropshadow": true, "femorphology": true,
	"animate": true, "animatetransform": true, "animatemotion": true, "set": true, "mpath": true,
}

// Элементы, которые вырезаются вместе с содержимым.
var droppedWithContent = map[string]bool{
	"script": true, "foreignobject": true, "object": true, "iframe": true, "noscript": true,
}

// Атрибуты со ссылкой, для которых проверяется схема data:.
var urlAttributes = map[string]bool{"href": true, "xlink:href": true, "src": true}

var animationElements = map[string]bool{
	"animate": true, "animatetransform": true, "animatemotion": true, "set": true,
}

var safeDataImage = regexp.MustCompile(`^data:image/(png|jpeg|gif|webp);`)

// ExtractMarkup возвращает внешний svg-блок из свободного текста.
// Пустая строка означает, что артефакта нет.
func ExtractMarkup(text string) string {
	return svgBlockRegex.FindString(text)
}

// SanitizeMarkup пересобирает разметку по токенам. Остаются только элементы SVG
// из белого списка; обработчики on*, ссылки javascript:/vbscript: и
// недопустимые data: удаляются. Значения атрибутов проверяются после
// декодирования сущностей, весь текст и значения экранируются заново.
func SanitizeMarkup(markup string) string {
	z := html.NewTokenizer(strings.NewReader(markup))
	var (
		out       strings.Builder
		skipTag   string
		skipDepth int
	)

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if !errors.Is(z.Err(), io.EOF) {
				return ""
			}
			break
		}
		raw := string(z.Raw())
		tok := z.Token()
		if tt == html.StartTagToken || tt == html.SelfClosingTagToken {
			// Внутри svg браузер не знает raw text: разбираем так же
			z.NextIsNotRawText()
		}

		if skipDepth > 0 {
			switch {
			case tt == html.StartTagToken && tok.Data == skipTag:
				skipDepth++
			case tt == html.EndTagToken && tok.Data == skipTag:
				skipDepth--
			}
			continue
		}

		switch tt {
		case html.TextToken:
			out.WriteString(html.EscapeString(tok.Data))

		case html.StartTagToken, html.SelfClosingTagToken:
			if droppedWithContent[tok.Data] {
				if tt == html.StartTagToken {
					skipTag, skipDepth = tok.Data, 1
				}
				continue
			}
			if !allowedElements[tok.Data] {
				continue
			}
			writeTag(&out, raw, tok, tt == html.SelfClosingTagToken)

		case html.EndTagToken:
			if allowedElements[tok.Data] {
				out.WriteString("</" + rawTagName(raw) + ">")
			}

		default:
			// комментарии, doctype и CDATA не переносятся
		}
	}
	return strings.TrimSpace(out.String())
}

// ExtractSanitizedMarkup - извлечение и очистка одним вызовом.
func ExtractSanitizedMarkup(text string) string {
	block := ExtractMarkup(text)
	if block == "" {
		return ""
	}
	return SanitizeMarkup(block)
}

func writeTag(out *strings.Builder, raw string, tok html.Token, selfClosing bool) {
	lowered := strings.ToLower(raw)
	out.WriteString("<" + rawTagName(raw))
	for _, attr := range tok.Attr {
		if !safeAttribute(tok.Data, attr) {
			continue
		}
		key := attr.Key
		if attr.Namespace != "" {
			key = attr.Namespace + ":" + key
		}
		out.WriteString(" " + originalCase(raw, lowered, key) + `="` + html.EscapeString(attr.Val) + `"`)
	}
	if selfClosing {
		out.WriteString("/")
	}
	out.WriteString(">")
}

func safeAttribute(element string, attr html.Attribute) bool {
	key := strings.ToLower(attr.Key)
	if attr.Namespace != "" {
		key = strings.ToLower(attr.Namespace) + ":" + key
	}
	if strings.HasPrefix(key, "on") {
		return false
	}

	value := normalizeValue(attr.Val)
	if strings.Contains(value, "javascript:") || strings.Contains(value, "vbscript:") {
		return false
	}
	if urlAttributes[key] && strings.HasPrefix(value, "data:") && !safeDataImage.MatchString(value) {
		return false
	}
	// анимация не должна подменять обработчики и ссылки
	if key == "attributename" && animationElements[element] {
		if strings.HasPrefix(value, "on") || value == "href" || value == "xlink:href" {
			return false
		}
	}
	return true
}

// normalizeValue убирает пробельные и управляющие символы: браузер
// игнорирует их внутри схемы URL.
func normalizeValue(v string) string {
	return strings.Map(func(r rune) rune {
		if r <= ' ' || r == 0x7f {
			return -1
		}
		return r
	}, strings.ToLower(v))
}

// rawTagName возвращает имя тега в исходном регистре (токенизатор его понижает).
func rawTagName(raw string) string {
	name := strings.TrimPrefix(strings.TrimPrefix(raw, "<"), "/")
	if i := strings.IndexAny(name, " \t\n\r\f/>"); i >= 0 {
		name = name[:i]
	}
	return name
}

// originalCase ищет ключ атрибута в исходном теге, чтобы сохранить
// регистр вроде viewBox. Ключ должен стоять на границе атрибута.
func originalCase(raw, lowered, key string) string {
	if len(raw) != len(lowered) {
		return key
	}
	for from := 0; from < len(lowered); {
		i := strings.Index(lowered[from:], key)
		if i < 0 {
			break
		}
		i += from
		end := i + len(key)
		if i > 0 && strings.ContainsRune(" \t\n\r\f/\"'", rune(lowered[i-1])) &&
			(end == len(lowered) || strings.ContainsRune(" \t\n\r\f=/>", rune(lowered[end]))) {
			return raw[i:end]
		}
		from = i + 1
	}
	return key
}
