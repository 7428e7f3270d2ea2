package bot

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/shouni/video-task-kit/pkg/domain"
)

// Command は解析済みのチャットコマンドです。Prompt はトリガーを除去して前後の空白を削ったものです。
type Command struct {
	Kind    domain.CommandKind
	Trigger string
	Prompt  string
}

type trigger struct {
	kind domain.CommandKind
	re   *regexp.Regexp
}

// Parser はメッセージ先頭のトリガーフレーズでコマンドを判定します。
type Parser struct {
	triggers []trigger
}

// NewParser は種別ごとのトリガーフレーズから Parser を作ります。
// 長いフレーズを先に照合するので、前方一致するフレーズ同士でも長い方が優先されます。
func NewParser(textToVideo, imageToVideo []string) (*Parser, error) {
	type phrase struct {
		kind domain.CommandKind
		text string
	}
	var phrases []phrase
	for kind, list := range map[domain.CommandKind][]string{
		domain.TextToVideo:  textToVideo,
		domain.ImageToVideo: imageToVideo,
	} {
		for _, s := range list {
			if s = strings.TrimSpace(s); s != "" {
				phrases = append(phrases, phrase{kind: kind, text: s})
			}
		}
	}
	if len(phrases) == 0 {
		return nil, fmt.Errorf("at least one trigger phrase is required")
	}
	// 同じ長さなら種別順にして照合順を固定する
	sort.Slice(phrases, func(i, j int) bool {
		if len(phrases[i].text) != len(phrases[j].text) {
			return len(phrases[i].text) > len(phrases[j].text)
		}
		if phrases[i].kind != phrases[j].kind {
			return phrases[i].kind < phrases[j].kind
		}
		return phrases[i].text < phrases[j].text
	})

	p := &Parser{}
	for _, ph := range phrases {
		re, err := regexp.Compile(`^(` + regexp.QuoteMeta(ph.text) + `)\s*`)
		if err != nil {
			return nil, fmt.Errorf("invalid trigger %q: %w", ph.text, err)
		}
		p.triggers = append(p.triggers, trigger{kind: ph.kind, re: re})
	}
	return p, nil
}

// Parse は text がコマンドであれば Command を返します。
func (p *Parser) Parse(text string) (Command, bool) {
	for _, t := range p.triggers {
		loc := t.re.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		return Command{
			Kind:    t.kind,
			Trigger: text[loc[2]:loc[3]],
			Prompt:  strings.TrimSpace(text[loc[1]:]),
		}, true
	}
	return Command{}, false
}
