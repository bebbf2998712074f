package services

import (
	"strings"
	"unicode"

	"loan-eda/models"
	"loan-eda/utils"
)

// Job category labels.
const (
	CategoryManagement     = "Management"
	CategoryHealthcare     = "Healthcare"
	CategoryEducation      = "Education"
	CategoryTechnology     = "Technology"
	CategoryTransportation = "Transportation"
	CategorySales          = "Sales"
	CategoryBusinessOwner  = "Business Owner"
	CategorySkilled        = "Skilled Workers"
	CategoryAdministrative = "Administrative"
	CategoryService        = "Service Jobs"
	CategoryProfessional   = "Professional"
	CategoryOther          = "Other"
)

// JobCategories is the fixed label set, in display order.
var JobCategories = []string{
	CategoryManagement, CategoryHealthcare, CategoryEducation, CategoryTechnology,
	CategoryTransportation, CategorySales, CategoryBusinessOwner, CategorySkilled,
	CategoryAdministrative, CategoryService, CategoryProfessional, CategoryOther,
}

// jobTitle is a normalized title: lowercase text with single spaces, and its
// word tokens.
type jobTitle struct {
	text  string
	words []string
}

func newJobTitle(raw string) jobTitle {
	lower := strings.ToLower(raw)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return jobTitle{text: strings.Join(words, " "), words: words}
}

// CategoryRule maps a title to Label when Match reports true.
type CategoryRule struct {
	Label string
	Match func(t jobTitle) bool
}

// contains matches substrings anywhere in the title.
func contains(keys ...string) func(t jobTitle) bool {
	return func(t jobTitle) bool {
		for _, k := range keys {
			if strings.Contains(t.text, k) {
				return true
			}
		}
		return false
	}
}

// word matches whole tokens, for short keywords that would otherwise hit
// inside unrelated words ("rn" in "government").
func word(keys ...string) func(t jobTitle) bool {
	return func(t jobTitle) bool {
		for _, w := range t.words {
			for _, k := range keys {
				if w == k {
					return true
				}
			}
		}
		return false
	}
}

func anyOf(preds ...func(t jobTitle) bool) func(t jobTitle) bool {
	return func(t jobTitle) bool {
		for _, p := range preds {
			if p(t) {
				return true
			}
		}
		return false
	}
}

// DefaultCategoryRules is evaluated top-down; the first match wins, so order
// decides overlaps such as "nurse manager" (Healthcare) or
// "software engineering manager" (Technology).
var DefaultCategoryRules = []CategoryRule{
	{CategoryHealthcare, anyOf(
		contains("nurse", "nursing", "physician", "doctor", "medical", "dental", "dentist",
			"pharmac", "therap", "health", "hospital", "clinic", "caregiver", "paramedic",
			"surgeon", "surgical", "radiolog", "patient", "phlebotom", "veterinar", "optometr"),
		word("rn", "lpn", "cna", "np", "emt", "md", "pa", "crna"),
	)},
	{CategoryEducation, anyOf(
		contains("teacher", "teaching", "professor", "instructor", "school", "educat",
			"tutor", "faculty", "librarian", "academic", "university", "college"),
	)},
	{CategoryTechnology, anyOf(
		contains("software", "developer", "programmer", "engineer", "information technology",
			"network", "database", "data scientist", "data analyst", "computer",
			"systems admin", "devops", "cyber", "technolog", "architect"),
		word("it", "qa", "sysadmin", "dba", "web"),
	)},
	{CategoryTransportation, anyOf(
		contains("driver", "truck", "pilot", "transport", "logistic", "dispatch",
			"courier", "delivery", "chauffeur", "railroad", "conductor", "aviation", "flight"),
		word("cdl", "bus"),
	)},
	{CategoryManagement, anyOf(
		contains("manager", "management", "director", "supervisor", "executive", "president",
			"superintendent", "administrator", "head of", "chief", "foreman", "lead"),
		word("vp", "ceo", "cfo", "coo", "cto", "gm", "mgr"),
	)},
	{CategorySales, anyOf(
		contains("sales", "account executive", "realtor", "real estate", "broker",
			"retail", "merchandis", "cashier", "marketing", "business development"),
		word("agent"),
	)},
	{CategoryBusinessOwner, anyOf(
		contains("owner", "self employed", "self-employed", "entrepreneur", "founder",
			"proprietor", "partner"),
	)},
	{CategorySkilled, anyOf(
		contains("electrician", "plumber", "carpenter", "mechanic", "welder", "machinist",
			"technician", "operator", "construction", "install", "maintenance", "hvac",
			"painter", "mason", "craftsman", "laborer", "assembler", "fabricat", "warehouse"),
	)},
	{CategoryAdministrative, anyOf(
		contains("admin", "assistant", "clerk", "secretary", "receptionist", "office",
			"coordinator", "specialist", "data entry", "bookkeep", "payroll", "billing"),
	)},
	{CategoryService, anyOf(
		contains("server", "waiter", "waitress", "bartender", "cook", "chef", "custodian",
			"janitor", "housekeep", "security", "guard", "customer service", "barista",
			"stylist", "nanny", "food", "restaurant", "hotel", "cleaner"),
		word("csr"),
	)},
	{CategoryProfessional, anyOf(
		contains("attorney", "lawyer", "legal", "paralegal", "accountant", "accounting",
			"analyst", "consultant", "auditor", "financ", "banker", "underwriter",
			"scientist", "research", "officer", "police", "firefighter", "military", "army",
			"navy", "sergeant", "pastor", "social worker", "counselor", "actuar", "economist"),
		word("cpa"),
	)},
}

// Categorizer maps free-text job titles to a fixed set of labels.
type Categorizer struct {
	logger *utils.Logger
	rules  []CategoryRule
}

// NewCategorizer creates a Categorizer using DefaultCategoryRules.
func NewCategorizer(logger *utils.Logger) *Categorizer {
	return &Categorizer{logger: logger, rules: DefaultCategoryRules}
}

// Categorize returns the label of the first matching rule, or CategoryOther.
func (c *Categorizer) Categorize(title string) string {
	label, _ := c.categorize(title)
	return label
}

func (c *Categorizer) categorize(title string) (string, bool) {
	t := newJobTitle(title)
	if t.text == "" {
		return CategoryOther, false
	}
	for _, r := range c.rules {
		if r.Match(t) {
			return r.Label, true
		}
	}
	return CategoryOther, false
}

// Apply sets Derived.JobCategory on every record and returns how many titles
// fell back to CategoryOther.
func (c *Categorizer) Apply(records []models.LoanRecord) int {
	fallbacks := 0
	for i := range records {
		r := &records[i]
		label, matched := c.categorize(r.EmpTitle.String)
		if !matched {
			fallbacks++
		}
		r.Derived.JobCategory = label
	}
	c.logger.Debug("[categorizer] %d of %d job titles matched no rule", fallbacks, len(records))
	return fallbacks
}
