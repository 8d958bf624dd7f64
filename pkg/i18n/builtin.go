package i18n

const copyrightLink = `https://github.com/excursion-studio/personal-homepage-template`

var builtin = map[string]map[string]string{
	"en": {
		"navHome":         "Home",
		"navExperiences":  "Experiences",
		"navPublications": "Publications",

		"aboutMe":       "About Me",
		"news":          "News",
		"latest":        "Latest",
		"googleScholar": "Google Scholar",

		"experiences":     "Experiences",
		"education":       "Education",
		"employment":      "Employment",
		"project":         "Project",
		"honorsAndAwards": "Honors & Awards",
		"teaching":        "Teaching",
		"reviewer":        "Reviewer",
		"major":           "Major",
		"college":         "College",
		"time":            "Time",
		"tutor":           "Tutor",
		"dissertation":    "Dissertation",
		"schoolWebsite":   "School Website",

		"publications":    "Publications",
		"academicPapers":  "Academic Papers",
		"patents":         "Patents",
		"journal":         "Journal",
		"conference":      "Conference",
		"authors":         "Authors",
		"abstract":        "Abstract",
		"doi":             "DOI",
		"patentNumber":    "Patent Number",
		"inventor":        "Inventor",
		"assignee":        "Assignee",
		"filingDate":      "Filing Date",
		"publicationDate": "Publication Date",
		"type":            "Type",

		"paper": "Paper",
		"code":  "Code",
		"video": "Video",
		"site":  "Site",

		"copyright":          `© {year} <a href="` + copyrightLink + `" target="_blank">Excursion Studio Personal Homepage (ESPH)</a>.`,
		"langSwitchTo":       "中",
		"noContentAvailable": "No content available",
		"themeLight":         "Light",
		"themeDark":          "Dark",
	},
	"zh": {
		"navHome":         "主页",
		"navExperiences":  "经历",
		"navPublications": "出版物",

		"aboutMe":       "关于我",
		"news":          "新闻",
		"latest":        "最新",
		"googleScholar": "谷歌学术",

		"experiences":     "经历",
		"education":       "教育",
		"employment":      "工作",
		"project":         "项目",
		"honorsAndAwards": "荣誉奖项",
		"teaching":        "教学",
		"reviewer":        "审稿",
		"major":           "专业",
		"college":         "学院",
		"time":            "时间",
		"tutor":           "导师",
		"dissertation":    "学位论文",
		"schoolWebsite":   "学校网站",

		"publications":    "出版物",
		"academicPapers":  "学术论文",
		"patents":         "专利",
		"journal":         "期刊",
		"conference":      "会议",
		"authors":         "作者",
		"abstract":        "摘要",
		"doi":             "DOI",
		"patentNumber":    "专利号",
		"inventor":        "发明人",
		"assignee":        "受让人",
		"filingDate":      "申请日期",
		"publicationDate": "公布日期",
		"type":            "类型",

		"paper": "论文",
		"code":  "代码",
		"video": "视频",
		"site":  "网站",

		"copyright":          `© {year} <a href="` + copyrightLink + `" target="_blank">远行工作室-个人主页</a>。`,
		"langSwitchTo":       "EN",
		"noContentAvailable": "暂无内容",
		"themeLight":         "浅色",
		"themeDark":          "深色",
	},
}
