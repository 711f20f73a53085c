package parser

import (
	"regexp"
	"strings"
)

// Rule maps a set of exact keywords, and a looser pattern tried only when no
// keyword of any rule matched, to one canonical value.
type Rule struct {
	Keywords []string
	Value    string
	Pattern  *regexp.Regexp
}

// DefaultBrands is the ordered brand list. Earlier entries win when several
// match, so case variants of the same brand sit next to each other.
var DefaultBrands = []string{
	"喜茶",
	"CoCo",
	"COCO",
	"coco",
	"霸王茶姬",
	"茶百道",
	"古茗",
	"奈雪",
	"奈雪的茶",
	"一点点",
	"蜜雪冰城",
	"书亦烧仙草",
	"茶颜悦色",
	"沪上阿姨",
	"益禾堂",
	"乐乐茶",
	"7分甜",
	"KOI",
	"koi",
}

// SugarRules is ordered most specific first.
var SugarRules = []Rule{
	{Keywords: []string{"7分糖", "七分糖", "少糖"}, Value: "少糖", Pattern: regexp.MustCompile(`[7七]分?糖`)},
	{Keywords: []string{"5分糖", "五分糖", "半糖"}, Value: "半糖", Pattern: regexp.MustCompile(`[5五]分?糖`)},
	{Keywords: []string{"3分糖", "三分糖", "微糖"}, Value: "微糖", Pattern: regexp.MustCompile(`[3三]分?糖`)},
	{Keywords: []string{"0糖", "零糖", "无糖"}, Value: "无糖", Pattern: regexp.MustCompile(`[0零]糖|无糖`)},
	{Keywords: []string{"正常糖", "标准糖", "全糖"}, Value: "正常糖", Pattern: regexp.MustCompile(`正常糖|标准糖|全糖`)},
}

// IceRules is ordered most specific first.
var IceRules = []Rule{
	{Keywords: []string{"7分冰", "七分冰", "少冰"}, Value: "少冰", Pattern: regexp.MustCompile(`[7七]分?冰|少冰`)},
	{Keywords: []string{"去冰", "无冰", "0冰"}, Value: "去冰", Pattern: regexp.MustCompile(`去冰|无冰|[0零]冰`)},
	{Keywords: []string{"正常冰", "标准冰", "全冰"}, Value: "正常冰", Pattern: regexp.MustCompile(`正常冰|标准冰|全冰`)},
	{Keywords: []string{"温", "常温"}, Value: "温", Pattern: regexp.MustCompile(`温|常温`)},
	{Keywords: []string{"热"}, Value: "热", Pattern: regexp.MustCompile(`热`)},
}

// pricePatterns are tried in order against the raw text. Only the first
// match of each pattern is considered; if it falls outside the accepted
// range the next pattern is tried.
var pricePatterns = []*regexp.Regexp{
	regexp.MustCompile(`[￥¥][\s\p{Zs}]*(\d+\.?\d*)`),
	regexp.MustCompile(`(\d+\.?\d*)[\s\p{Zs}]*元`),
	regexp.MustCompile(`\$[\s\p{Zs}]*(\d+\.?\d*)`),
	regexp.MustCompile(`价格[：:][\s\p{Zs}]*(\d+\.?\d*)`),
	regexp.MustCompile(`(\d{1,2}\.\d{1,2})`),
	// A bare number alone on a line. Prone to picking up page numbers, but
	// the range check is the only guard.
	regexp.MustCompile(`(?m)^(\d{1,3})$`),
}

// lineEndings folds CRLF and CR into LF so (?m)$ sees every line end.
var lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n")

const (
	minPrice = 1
	maxPrice = 200
)

// nameKeywords mark a line as probably naming a drink.
var nameKeywords = []string{
	"茶", "奶", "果", "波", "布丁", "椰", "芋", "红豆", "珍珠", "多肉", "葡萄", "柠檬", "草莓", "芝士", "烧仙草",
}

// nameExcludeMarkers identify option lines (sweetness, ice, price,
// promotions) that never carry the drink name.
var nameExcludeMarkers = []string{"糖", "冰", "￥", "¥", "元", "推荐"}

var fractionPattern = regexp.MustCompile(`\d+分`)

const (
	minNameLen = 2
	maxNameLen = 15
)
