package classify

// Category is the job-type label assigned to a harvested link.
type Category string

const (
	Teaching       Category = "teaching"
	Administrative Category = "administrative"
	Other          Category = "other"
)

// Label returns the display label used on the published job list.
func (c Category) Label() string {
	switch c {
	case Teaching:
		return "教师岗"
	case Administrative:
		return "行政岗"
	default:
		return "其他"
	}
}

// Valid reports whether c is one of the three fixed categories.
func (c Category) Valid() bool {
	return c == Teaching || c == Administrative || c == Other
}

// ParseCategory accepts either the stored value or the display label.
func ParseCategory(s string) (Category, bool) {
	for _, c := range []Category{Teaching, Administrative, Other} {
		if s == string(c) || s == c.Label() {
			return c, true
		}
	}
	return "", false
}

// Rules holds every keyword list the heuristics read. A Rules value is built
// once at startup and treated as read-only afterwards.
type Rules struct {
	Teaching          []string `yaml:"teaching"`
	Administrative    []string `yaml:"administrative"`
	General           []string `yaml:"general"`
	Navigation        []string `yaml:"navigation"`
	ArticleIndicators []string `yaml:"article_indicators"`
}

// DefaultRules returns a fresh copy of the built-in keyword lists.
func DefaultRules() Rules {
	return Rules{
		Teaching: []string{
			"教师", "教师岗", "教学", "师资", "博士", "硕士招聘", "专任教师", "辅导员",
		},
		// General hiring words like 招聘 stay out of this list so they do not
		// pull teaching postings into the administrative bucket.
		Administrative: []string{
			"行政", "行政岗", "管理岗", "管理人员", "职员", "人事岗", "教辅",
		},
		General: []string{
			"招聘", "人才", "应聘", "招录", "公告", "人才引进", "公开招聘",
			"recruit", "talent", "zhaopin", "rczp", "job",
		},
		Navigation: []string{
			"人事政策", "人事改革", "工作流程", "办事指南", "机构设置", "规章制度",
			"下载专区", "通知公告", "招聘信息", "首页", "更多", "列表", "栏目",
			"政策法规", "师资队伍", "部门介绍", "联系我们", "人才招聘",
		},
		ArticleIndicators: []string{
			"公告", "通知", "办法", "条例", "启事", "公示", "简章", "计划", "规定", "意见",
		},
	}
}

// Merge returns r with every non-empty list in override replacing its
// counterpart.
func (r Rules) Merge(override Rules) Rules {
	pick := func(base, o []string) []string {
		if len(o) > 0 {
			return append([]string(nil), o...)
		}
		return base
	}
	return Rules{
		Teaching:          pick(r.Teaching, override.Teaching),
		Administrative:    pick(r.Administrative, override.Administrative),
		General:           pick(r.General, override.General),
		Navigation:        pick(r.Navigation, override.Navigation),
		ArticleIndicators: pick(r.ArticleIndicators, override.ArticleIndicators),
	}
}

// Extend returns r with every list in extra appended to its counterpart,
// skipping terms already present.
func (r Rules) Extend(extra Rules) Rules {
	add := func(base, more []string) []string {
		out := append([]string(nil), base...)
		have := make(map[string]struct{}, len(out))
		for _, k := range out {
			have[k] = struct{}{}
		}
		for _, k := range more {
			if _, ok := have[k]; ok || k == "" {
				continue
			}
			have[k] = struct{}{}
			out = append(out, k)
		}
		return out
	}
	return Rules{
		Teaching:          add(r.Teaching, extra.Teaching),
		Administrative:    add(r.Administrative, extra.Administrative),
		General:           add(r.General, extra.General),
		Navigation:        add(r.Navigation, extra.Navigation),
		ArticleIndicators: add(r.ArticleIndicators, extra.ArticleIndicators),
	}
}

// RecruitmentTerms is the union used by the link pre-screen.
func (r Rules) RecruitmentTerms() []string {
	out := make([]string, 0, len(r.General)+len(r.Teaching)+len(r.Administrative))
	out = append(out, r.General...)
	out = append(out, r.Teaching...)
	out = append(out, r.Administrative...)
	return out
}
