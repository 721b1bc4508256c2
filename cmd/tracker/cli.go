package main

import (
	"bufio"
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"

	"jobtracker/client/internal/api"
	"jobtracker/client/internal/dashboard"
	"jobtracker/client/internal/errors"
	"jobtracker/client/internal/models"
)

var (
	// errReported means the user has already been told about the failure
	// through a notice.
	errReported    = stderrors.New("reported")
	errNotLoggedIn = stderrors.New("not logged in, run `tracker login` first")
)

const usage = `usage: tracker <command> [arguments]

commands:
  login   -u USER [-p PASSWORD]            sign in (password defaults to $TRACKER_PASSWORD)
  signup  -u USER -e EMAIL [-p PASSWORD]   create an account
  logout                                   sign out
  whoami                                   show the signed-in user
  list    [-page N] [-keyword K] [-status S]
  get     ID
  create  -company C -role R [-status S] [-date YYYY-MM-DD] [-notes N]
  update  ID [-company C] [-role R] [-status S] [-date YYYY-MM-DD] [-notes N]
  delete  ID [-yes]
  stats
`

type cli struct {
	auth    *api.AuthService
	records *api.RecordService
	list    *dashboard.Controller
	stats   *dashboard.StatsPanel
	coord   *dashboard.Coordinator
	prompt  *prompter

	out    io.Writer
	errOut io.Writer
}

func (c *cli) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(c.errOut, usage)
		return errReported
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "login":
		return c.login(ctx, rest)
	case "signup":
		return c.signup(ctx, rest)
	case "logout":
		return c.logout(ctx)
	case "whoami":
		return c.whoami()
	case "list":
		return c.listApplications(ctx, rest)
	case "get":
		return c.get(ctx, rest)
	case "create":
		return c.create(ctx, rest)
	case "update":
		return c.update(ctx, rest)
	case "delete":
		return c.remove(ctx, rest)
	case "stats":
		return c.showStats(ctx)
	case "help", "-h", "--help":
		fmt.Fprint(c.out, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (c *cli) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.errOut)
	return fs
}

func (c *cli) login(ctx context.Context, args []string) error {
	fs := c.flags("login")
	username := fs.String("u", "", "username")
	password := fs.String("p", os.Getenv("TRACKER_PASSWORD"), "password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" || *password == "" {
		return stderrors.New("login needs -u and a password")
	}

	resp, err := c.auth.Login(ctx, *username, *password)
	if err != nil {
		return describe(err)
	}
	if resp.User == nil {
		return stderrors.New("login failed: server returned no session")
	}
	fmt.Fprintf(c.out, "Logged in as %s\n", resp.User.Username)
	return nil
}

func (c *cli) signup(ctx context.Context, args []string) error {
	fs := c.flags("signup")
	username := fs.String("u", "", "username")
	email := fs.String("e", "", "email")
	password := fs.String("p", os.Getenv("TRACKER_PASSWORD"), "password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	resp, err := c.auth.Signup(ctx, *username, *email, *password)
	if err != nil {
		return describe(err)
	}
	if resp.Message != "" {
		fmt.Fprintln(c.out, resp.Message)
	}
	fmt.Fprintln(c.out, "Run `tracker login` to sign in.")
	return nil
}

func (c *cli) logout(ctx context.Context) error {
	if err := c.auth.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "Logged out")
	return nil
}

func (c *cli) whoami() error {
	user := c.auth.CurrentUser()
	if user == nil {
		return errNotLoggedIn
	}
	fmt.Fprintf(c.out, "%s", user.Username)
	if user.Email != "" {
		fmt.Fprintf(c.out, " <%s>", user.Email)
	}
	fmt.Fprintln(c.out)
	return nil
}

func (c *cli) listApplications(ctx context.Context, args []string) error {
	fs := c.flags("list")
	page := fs.Int("page", 1, "page number, starting at 1")
	keyword := fs.String("keyword", "", "search company and role")
	statusFlag := fs.String("status", "", "APPLIED, INTERVIEW, OFFER or REJECTED")
	if err := fs.Parse(args); err != nil {
		return err
	}
	status, err := models.ParseStatus(*statusFlag)
	if err != nil {
		return err
	}
	if !c.auth.IsAuthenticated() {
		return errNotLoggedIn
	}

	if err := c.list.ApplyFilters(ctx, *keyword, status); err != nil {
		return errReported
	}
	if *page > 1 {
		if err := c.list.SetPage(ctx, *page-1); err != nil {
			if stderrors.Is(err, dashboard.ErrPageOutOfRange) {
				return fmt.Errorf("page %d does not exist, there are %d", *page, c.list.View().TotalPages())
			}
			return errReported
		}
	}

	renderView(c.out, c.list.View())
	return nil
}

func (c *cli) get(ctx context.Context, args []string) error {
	id, _, err := splitID(args)
	if err != nil {
		return err
	}
	if !c.auth.IsAuthenticated() {
		return errNotLoggedIn
	}

	record, err := c.records.Get(ctx, id)
	if err != nil {
		return describe(err)
	}
	renderRecord(c.out, *record)
	return nil
}

// formFlags binds the editable fields of an application to fs.
type formFlags struct {
	company, role, status, date, notes *string
}

func bindForm(fs *flag.FlagSet) formFlags {
	return formFlags{
		company: fs.String("company", "", "company name"),
		role:    fs.String("role", "", "role"),
		status:  fs.String("status", "", "APPLIED, INTERVIEW, OFFER or REJECTED"),
		date:    fs.String("date", "", "date applied, YYYY-MM-DD"),
		notes:   fs.String("notes", "", "free-form notes"),
	}
}

// apply copies the flags that were given on the command line onto form.
func (f formFlags) apply(fs *flag.FlagSet, form models.ApplicationInput) (models.ApplicationInput, error) {
	var err error
	fs.Visit(func(fl *flag.Flag) {
		if err != nil {
			return
		}
		switch fl.Name {
		case "company":
			form.Company = *f.company
		case "role":
			form.Role = *f.role
		case "notes":
			form.Notes = *f.notes
		case "status":
			form.Status, err = models.ParseStatus(*f.status)
		case "date":
			form.DateApplied, err = models.ParseDate(*f.date)
		}
	})
	return form, err
}

func (c *cli) create(ctx context.Context, args []string) error {
	fs := c.flags("create")
	form := bindForm(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !c.auth.IsAuthenticated() {
		return errNotLoggedIn
	}

	c.coord.OpenNew()
	input, err := form.apply(fs, c.coord.Surface().Form)
	if err != nil {
		c.coord.Close()
		return err
	}
	return c.submit(ctx, input)
}

func (c *cli) update(ctx context.Context, args []string) error {
	id, rest, err := splitID(args)
	if err != nil {
		return err
	}
	fs := c.flags("update")
	form := bindForm(fs)
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if !c.auth.IsAuthenticated() {
		return errNotLoggedIn
	}

	if err := c.coord.OpenEditByID(ctx, id); err != nil {
		return errReported
	}
	input, err := form.apply(fs, c.coord.Surface().Form)
	if err != nil {
		c.coord.Close()
		return err
	}
	return c.submit(ctx, input)
}

func (c *cli) submit(ctx context.Context, input models.ApplicationInput) error {
	if err := c.coord.Submit(ctx, input); err != nil {
		surface := c.coord.Surface()
		renderFieldErrors(c.errOut, surface.FieldErrors)
		c.coord.Close()
		return errReported
	}
	return nil
}

func (c *cli) remove(ctx context.Context, args []string) error {
	id, rest, err := splitID(args)
	if err != nil {
		return err
	}
	fs := c.flags("delete")
	yes := fs.Bool("yes", false, "do not ask for confirmation")
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if !c.auth.IsAuthenticated() {
		return errNotLoggedIn
	}

	c.prompt.SetAssumeYes(*yes)
	if err := c.coord.Remove(ctx, id); err != nil {
		return errReported
	}
	return nil
}

func (c *cli) showStats(ctx context.Context) error {
	if !c.auth.IsAuthenticated() {
		return errNotLoggedIn
	}
	if err := c.stats.Refresh(ctx); err != nil {
		return errReported
	}
	snap, _ := c.stats.Snapshot()
	renderStats(c.out, snap)
	return nil
}

func splitID(args []string) (models.RecordID, []string, error) {
	if len(args) == 0 {
		return 0, nil, stderrors.New("missing application id")
	}
	id, err := models.ParseRecordID(args[0])
	if err != nil {
		return 0, nil, err
	}
	return id, args[1:], nil
}

// describe prefers the server's own wording for a failed call.
func describe(err error) error {
	if msg, ok := errors.ServerMessage(err); ok {
		return stderrors.New(msg)
	}
	return err
}

// prompter is the delete confirmation on a terminal.
type prompter struct {
	mu        sync.Mutex
	in        *bufio.Reader
	out       io.Writer
	assumeYes bool
}

func newPrompterFor(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out}
}

func (p *prompter) SetAssumeYes(yes bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.assumeYes = yes
}

func (p *prompter) Confirm(_ context.Context, prompt string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.assumeYes {
		return true
	}

	fmt.Fprintf(p.out, "%s [y/N] ", prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func renderView(w io.Writer, v dashboard.View) {
	records := v.Records()
	if len(records) == 0 {
		fmt.Fprintln(w, "No applications found.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCOMPANY\tROLE\tSTATUS\tAPPLIED")
	for _, r := range records {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", r.ID, r.Company, r.Role, r.Status, r.DateApplied)
	}
	tw.Flush()

	if v.ShowPagination() {
		fmt.Fprintf(w, "\nPage %d of %d", v.DisplayPage(), v.TotalPages())
		if v.HasPrev() {
			fmt.Fprintf(w, "  (previous: -page %d)", v.DisplayPage()-1)
		}
		if v.HasNext() {
			fmt.Fprintf(w, "  (next: -page %d)", v.DisplayPage()+1)
		}
		fmt.Fprintln(w)
	}
}

func renderRecord(w io.Writer, r models.ApplicationRecord) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\t%d\n", r.ID)
	fmt.Fprintf(tw, "Company\t%s\n", r.Company)
	fmt.Fprintf(tw, "Role\t%s\n", r.Role)
	fmt.Fprintf(tw, "Status\t%s\n", r.Status)
	fmt.Fprintf(tw, "Applied\t%s\n", r.DateApplied)
	if r.Notes != "" {
		fmt.Fprintf(tw, "Notes\t%s\n", r.Notes)
	}
	if r.CreatedAt != "" {
		fmt.Fprintf(tw, "Created\t%s\n", r.CreatedAt)
	}
	if r.UpdatedAt != "" {
		fmt.Fprintf(tw, "Updated\t%s\n", r.UpdatedAt)
	}
	tw.Flush()
}

func renderStats(w io.Writer, s models.StatisticsSnapshot) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Total\t%d\n", s.Total)
	for _, status := range models.Statuses() {
		fmt.Fprintf(tw, "%s\t%d\n", status, s.Count(status))
	}
	tw.Flush()
}

func renderFieldErrors(w io.Writer, fields map[string]string) {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s: %s\n", name, fields[name])
	}
}
