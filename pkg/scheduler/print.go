package scheduler

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

const diffTypeNone = "None"

// PrintPlan writes the diff of a plan for an operator to review:
// each task group with its update counts, and each changed task with
// the fields that change.
func PrintPlan(out io.Writer, plan PlanResponse) {
	fmt.Fprintf(out, "Job: %q\n", plan.Diff.ID)
	for _, group := range plan.Diff.TaskGroups {
		fmt.Fprintf(out, "Task Group %q\n", group.Name)

		updates := make([]string, 0, len(group.Updates))
		for k := range group.Updates {
			updates = append(updates, k)
		}
		sort.Strings(updates)
		for _, k := range updates {
			fmt.Fprintf(out, "  %s: %d\n", k, group.Updates[k])
		}

		for _, task := range group.Tasks {
			if task.Type == diffTypeNone {
				continue
			}
			fmt.Fprintf(out, "  %s task %q %s\n", task.Type, task.Name, annotations(task.Annotations))
			for _, field := range task.Fields {
				fmt.Fprintf(out, "    %s field %s: %q -> %q %s\n",
					field.Type, field.Name, field.Old, field.New, annotations(field.Annotations))
			}
		}
	}
}

func annotations(anns []string) string {
	if anns == nil {
		return ""
	}
	return "(" + strings.Join(anns, " & ") + ")"
}
