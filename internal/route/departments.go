package route

// DefaultDepartmentID is the system-wide fallback: Roads & Infrastructure
// handles anything nothing else claims.
const DefaultDepartmentID = "1"

var departmentNames = map[string]string{
	"1": "Roads & Infrastructure",
	"2": "Sanitation & Waste Management",
	"3": "Electrical & Utilities",
	"4": "Water & Drainage",
	"5": "Traffic Management",
	"6": "Parks & Recreation",
}

var departmentOrder = []string{"1", "2", "3", "4", "5", "6"}

// DepartmentName resolves a department id to its display name.
func DepartmentName(id string) string {
	if name, ok := departmentNames[id]; ok {
		return name
	}
	return "General Services"
}

// DepartmentIDs returns the registry ids in their fixed order.
func DepartmentIDs() []string {
	ids := make([]string, len(departmentOrder))
	copy(ids, departmentOrder)
	return ids
}
