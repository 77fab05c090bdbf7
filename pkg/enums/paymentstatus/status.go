package paymentstatus

type Status struct {
	Name string
}

func (s Status) Code() string {
	return s.Name
}

func (s Status) Label() string {
	switch s.Name {
	case Statuses.Success.Name:
		return "Paid"
	case Statuses.Failed.Name:
		return "Failed"
	default:
		return "Pending"
	}
}

type Enum struct {
	Pending Status
	Success Status
	Failed  Status
}

var Statuses = Enum{
	Pending: Status{Name: "pending"},
	Success: Status{Name: "success"},
	Failed:  Status{Name: "failed"},
}

var All = []Status{
	Statuses.Pending,
	Statuses.Success,
	Statuses.Failed,
}

func ByName(name string) *Status {
	for _, s := range All {
		if s.Name == name {
			return &s
		}
	}
	return nil
}
