package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"gigboard/internal/category"
	"gigboard/internal/client"
	"gigboard/internal/export"
	"gigboard/internal/identity"
	"gigboard/internal/schedule"
	"gigboard/internal/workflow"

	"github.com/shopspring/decimal"
)

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "register":
		return a.register(ctx, args)
	case "login":
		return a.login(ctx, args)
	case "logout":
		if err := a.session.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(a.term.out, "Signed out.")
		return nil
	case "whoami":
		return a.whoami()
	case "profile":
		return a.profile(ctx, args)
	case "jobs":
		return a.jobs(ctx, args)
	case "latest":
		return a.latest(ctx, args)
	case "category":
		return a.byCategory(ctx, args)
	case "show":
		return a.show(ctx, args)
	case "stats":
		return a.stats(ctx)
	case "post":
		return a.post(ctx, args)
	case "edit":
		return a.edit(ctx, args)
	case "delete":
		id, err := oneArg("delete", args)
		if err != nil {
			return err
		}
		return quiet(a.authoring.DeleteJob(ctx, id))
	case "mine":
		a.render(ctx, workflow.ViewPostedJobs)
		return nil
	case "accept":
		return a.acceptJob(ctx, args)
	case "tasks":
		a.render(ctx, workflow.ViewAcceptedTasks)
		return nil
	case "done":
		return a.resolve(ctx, args, workflow.ResolutionDone)
	case "cancel":
		return a.resolve(ctx, args, workflow.ResolutionCancelled)
	case "history":
		return a.history(ctx)
	case "sync":
		return a.sync(ctx, args)
	case "export":
		return a.exportXLSX(ctx, args)
	case "help":
		fmt.Fprint(a.term.out, usage)
		return nil
	}
	return fmt.Errorf("unknown command %q (try gigctl help)", cmd)
}

func (a *app) render(ctx context.Context, v workflow.View) {
	switch v {
	case workflow.ViewAcceptedTasks:
		tasks, err := a.accept.ListAcceptedTasks(ctx, "")
		if err != nil {
			if errors.Is(err, workflow.ErrNotLoggedIn) {
				a.render(ctx, workflow.ViewLogin)
			}
			return
		}
		printTasks(a.term.out, tasks)
	case workflow.ViewPostedJobs:
		jobs, err := a.authoring.LoadPostedJobs(ctx)
		if err != nil {
			if errors.Is(err, workflow.ErrNotLoggedIn) {
				a.render(ctx, workflow.ViewLogin)
			}
			return
		}
		printJobs(a.term.out, jobs)
	case workflow.ViewLogin:
		fmt.Fprintln(a.term.out, "Sign in first: gigctl login -email you@example.com -password ...")
	case workflow.ViewJobs:
		jobs, err := a.api.GetAllJobs(ctx, "", "")
		if err != nil {
			a.term.Notify(workflow.LevelError, err.Error())
			return
		}
		printJobs(a.term.out, jobs)
	}
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password, at least 6 characters")
	name := fs.String("name", "", "display name")
	photo := fs.String("photo", "", "photo URL")
	if err := fs.Parse(args); err != nil {
		return err
	}
	u, err := a.session.Register(ctx, identity.RegisterInput{Email: *email, Password: *password, DisplayName: *name, PhotoURL: *photo})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.term.out, "Welcome, %s!\n", identity.DisplayName(u))
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password")
	provider := fs.String("provider", "", "federated provider, e.g. google")
	idToken := fs.String("id-token", "", "ID token issued by the provider")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		u   client.User
		err error
	)
	if *provider != "" {
		u, err = a.session.LoginWithProvider(ctx, *provider, *idToken)
	} else {
		u, err = a.session.Login(ctx, *email, *password)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.term.out, "Signed in as %s (%s).\n", identity.DisplayName(u), u.Email)
	return nil
}

func (a *app) whoami() error {
	u, ok := a.session.Current()
	if !ok {
		return workflow.ErrNotLoggedIn
	}
	w := tabwriter.NewWriter(a.term.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Email\t%s\n", u.Email)
	fmt.Fprintf(w, "Name\t%s\n", identity.DisplayName(u))
	fmt.Fprintf(w, "Role\t%s\n", u.Role)
	if u.PhotoURL != "" {
		fmt.Fprintf(w, "Photo\t%s\n", u.PhotoURL)
	}
	if u.Provider != "" {
		fmt.Fprintf(w, "Provider\t%s\n", u.Provider)
	}
	return w.Flush()
}

func (a *app) profile(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("profile", flag.ContinueOnError)
	name := fs.String("name", "", "new display name")
	photo := fs.String("photo", "", "new photo URL")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var namePtr, photoPtr *string
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "name":
			namePtr = name
		case "photo":
			photoPtr = photo
		}
	})
	if _, err := a.session.UpdateProfile(ctx, namePtr, photoPtr); err != nil {
		return err
	}
	return a.whoami()
}

func (a *app) jobs(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("jobs", flag.ContinueOnError)
	sortBy := fs.String("sort", "postedDate", "postedDate or title")
	order := fs.String("order", "desc", "asc or desc")
	term := fs.String("q", "", "search title, summary and poster")
	cat := fs.String("category", category.All, "category filter")
	if err := fs.Parse(args); err != nil {
		return err
	}
	jobs, err := a.api.GetAllJobs(ctx, *sortBy, *order)
	if err != nil {
		return err
	}
	printJobs(a.term.out, workflow.Filter(jobs, *term, *cat))
	return nil
}

func (a *app) latest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("latest", flag.ContinueOnError)
	n := fs.Int("n", 6, "how many jobs")
	if err := fs.Parse(args); err != nil {
		return err
	}
	jobs, err := a.api.GetLatestJobs(ctx, *n)
	if err != nil {
		return err
	}
	printJobs(a.term.out, jobs)
	return nil
}

func (a *app) byCategory(ctx context.Context, args []string) error {
	if len(args) == 0 {
		for _, n := range category.Names() {
			fmt.Fprintf(a.term.out, "%-20s %s\n", n, category.Slug(n))
		}
		return nil
	}
	name := strings.Join(args, " ")
	jobs, err := a.api.GetJobsByCategory(ctx, name)
	if err != nil {
		return err
	}
	printJobs(a.term.out, jobs)
	return nil
}

func (a *app) show(ctx context.Context, args []string) error {
	id, err := oneArg("show", args)
	if err != nil {
		return err
	}
	j, err := a.api.GetJobByID(ctx, id)
	if errors.Is(err, client.ErrNotFound) {
		return fmt.Errorf("job %s not found; list jobs with gigctl jobs", id)
	}
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.term.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Title\t%s\n", j.Title)
	fmt.Fprintf(w, "Category\t%s\n", j.Category)
	fmt.Fprintf(w, "Posted by\t%s <%s>\n", j.PostedBy, j.UserEmail)
	fmt.Fprintf(w, "Posted\t%s\n", j.PostedDate.Local().Format("2006-01-02 15:04"))
	if j.Budget != nil {
		fmt.Fprintf(w, "Budget\t%s\n", j.Budget.StringFixed(2))
	}
	if len(j.Tags) > 0 {
		fmt.Fprintf(w, "Tags\t#%s\n", strings.Join(j.Tags, " #"))
	}
	fmt.Fprintf(w, "Cover\t%s\n", j.CoverImage)
	if _, ok := a.session.Current(); ok {
		fmt.Fprintf(w, "Status\t%s\n", a.accept.State(ctx, j.ID))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.term.out, "\n%s\n", j.Summary)
	return nil
}

func (a *app) stats(ctx context.Context) error {
	st, err := a.api.GetStats(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.term.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Jobs\t%d\n", st.TotalJobs)
	fmt.Fprintf(w, "Live acceptances\t%d\n", st.TotalAcceptances)
	for _, c := range st.ByCategory {
		fmt.Fprintf(w, "  %s\t%d\n", c.Category, c.Count)
	}
	return w.Flush()
}

type jobFlags struct {
	fs       *flag.FlagSet
	title    *string
	category *string
	summary  *string
	cover    *string
	budget   *string
}

func newJobFlags(name string) *jobFlags {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	return &jobFlags{
		fs:       fs,
		title:    fs.String("title", "", "job title"),
		category: fs.String("category", "", "one of: "+strings.Join(category.Names(), ", ")),
		summary:  fs.String("summary", "", "job description; #hashtags become tags"),
		cover:    fs.String("cover", "", "cover image URL"),
		budget:   fs.String("budget", "", "optional budget, e.g. 150.00"),
	}
}

// apply copies the flags that were set onto f.
func (jf *jobFlags) apply(f *workflow.Fields) error {
	var err error
	jf.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "title":
			f.Title = *jf.title
		case "category":
			f.Category = *jf.category
		case "summary":
			f.Summary = *jf.summary
		case "cover":
			f.CoverImage = *jf.cover
		case "budget":
			if strings.TrimSpace(*jf.budget) == "" {
				f.Budget = nil
				return
			}
			d, perr := decimal.NewFromString(*jf.budget)
			if perr != nil {
				err = fmt.Errorf("budget %q: %w", *jf.budget, perr)
				return
			}
			f.Budget = &d
		}
	})
	return err
}

func (a *app) post(ctx context.Context, args []string) error {
	jf := newJobFlags("post")
	if err := jf.fs.Parse(args); err != nil {
		return err
	}
	var f workflow.Fields
	if err := jf.apply(&f); err != nil {
		return err
	}
	_, err := a.authoring.CreateJob(ctx, f)
	return quiet(err)
}

func (a *app) edit(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: gigctl edit ID [flags]")
	}
	id := args[0]
	jf := newJobFlags("edit")
	if err := jf.fs.Parse(args[1:]); err != nil {
		return err
	}

	current, err := a.authoring.EditJob(ctx, id)
	if err != nil {
		return quiet(err)
	}
	f := workflow.FieldsFrom(current)
	if err := jf.apply(&f); err != nil {
		return err
	}
	_, err = a.authoring.UpdateJob(ctx, id, f)
	return quiet(err)
}

func (a *app) acceptJob(ctx context.Context, args []string) error {
	id, err := oneArg("accept", args)
	if err != nil {
		return err
	}
	j, err := a.api.GetJobByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load job %s: %w", id, err)
	}
	_, err = a.accept.AcceptJob(ctx, j)
	return quiet(err)
}

func (a *app) resolve(ctx context.Context, args []string, res workflow.Resolution) error {
	id, err := oneArg(string(res), args)
	if err != nil {
		return err
	}
	if _, err := a.accept.ListAcceptedTasks(ctx, ""); err != nil {
		return quiet(err)
	}
	return quiet(a.accept.ResolveTask(ctx, id, "", res))
}

func (a *app) history(ctx context.Context) error {
	u, ok := a.session.Current()
	if !ok {
		return workflow.ErrNotLoggedIn
	}
	events, err := a.api.GetHistory(ctx, u.Email)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.term.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tEVENT\tJOB\tACCEPTANCE")
	for _, ev := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", ev.CreatedAt.Local().Format("2006-01-02 15:04"), ev.Type, ev.JobTitle, ev.AcceptanceID)
	}
	return w.Flush()
}

func (a *app) sync(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	spec := fs.String("cron", "", "keep running and reconcile on this schedule, e.g. \"@every 5m\"")
	if err := fs.Parse(args); err != nil {
		return err
	}

	reconcile := func(ctx context.Context) error {
		added, removed, err := a.accept.Reconcile(ctx, "")
		if err != nil {
			return err
		}
		fmt.Fprintf(a.term.out, "cache synced: %d added, %d removed\n", added, removed)
		return nil
	}
	if err := reconcile(ctx); err != nil {
		return err
	}
	if *spec == "" {
		return nil
	}

	s := schedule.New(a.logger)
	if err := s.Add("reconcile", *spec, reconcile); err != nil {
		return err
	}
	if next, err := schedule.Next(*spec, time.Now()); err == nil {
		a.logger.Info("sync scheduled", "cron", *spec, "next", next)
	}
	s.Run(ctx)
	return nil
}

func (a *app) exportXLSX(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	kind := fs.String("kind", "tasks", "tasks or jobs")
	out := fs.String("o", "", "output .xlsx file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		*out = "gigboard-" + *kind + ".xlsx"
	}

	var (
		data []byte
		n    int
		err  error
	)
	switch *kind {
	case "tasks":
		var tasks []workflow.AcceptedTask
		if tasks, err = a.accept.ListAcceptedTasks(ctx, ""); err != nil {
			return quiet(err)
		}
		n = len(tasks)
		data, err = export.AcceptedTasks(tasks)
	case "jobs":
		var jobs []client.Job
		if jobs, err = a.authoring.LoadPostedJobs(ctx); err != nil {
			return quiet(err)
		}
		n = len(jobs)
		data, err = export.PostedJobs(jobs)
	default:
		return fmt.Errorf("unknown export kind %q", *kind)
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(a.term.out, "wrote %d rows to %s\n", n, *out)
	return nil
}

func oneArg(cmd string, args []string) (string, error) {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return "", fmt.Errorf("usage: gigctl %s ID", cmd)
	}
	return args[0], nil
}

func printJobs(out io.Writer, jobs []client.Job) {
	if len(jobs) == 0 {
		fmt.Fprintln(out, "No jobs found.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tCATEGORY\tBUDGET\tPOSTED BY\tPOSTED")
	for _, j := range jobs {
		b := "-"
		if j.Budget != nil {
			b = j.Budget.StringFixed(2)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", j.ID, j.Title, j.Category, b, j.PostedBy, j.PostedDate.Local().Format("2006-01-02"))
	}
	_ = w.Flush()
	fmt.Fprintln(out, strconv.Itoa(len(jobs))+" job(s)")
}

func printTasks(out io.Writer, tasks []workflow.AcceptedTask) {
	if len(tasks) == 0 {
		fmt.Fprintln(out, "No accepted tasks.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ACCEPTANCE\tJOB\tCATEGORY\tACCEPTED")
	for _, t := range tasks {
		title, cat := "(job unavailable)", "-"
		if t.Job != nil {
			title, cat = t.Job.Title, t.Job.Category
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.AcceptanceID, title, cat, t.AcceptedAt.Local().Format("2006-01-02 15:04"))
	}
	_ = w.Flush()
}
