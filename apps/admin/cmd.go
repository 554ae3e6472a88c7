package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/trezcool/elimu/core/staff"
	"github.com/trezcool/elimu/core/walker"
	"github.com/trezcool/elimu/storage/seed"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	staffSvc   *staff.Service
	seeder     *seed.Seeder
	dispatcher *walker.Dispatcher
	migrate    func(command string, args ...string) error
	out        io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  createstaff -name NAME -email EMAIL -role ROLE [-dept DEPT] [-registry NUMBER] - create a staff account")
	fmt.Fprintln(cli.out, "  resetpassword -email EMAIL - reset a staff member's password")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS...] - run a goose migration command against postgres")
	fmt.Fprintln(cli.out, "  seed [-force] - load the demo data")
	fmt.Fprintln(cli.out, "  walker -name NAME -actor ID [-payload JSON] - run a walker command as a staff member")
}

func (cli *commandLine) readPassword(prompt string) (string, error) {
	fmt.Fprint(cli.out, prompt)
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	return string(pwd), err
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	createStaffCmd := flag.NewFlagSet("createstaff", flag.ContinueOnError)
	createStaffName := createStaffCmd.String("name", "", "The staff member's full name.")
	createStaffEmail := createStaffCmd.String("email", "", "The staff member's email. The password will be prompted next.")
	createStaffRole := createStaffCmd.String("role", string(staff.RoleTeacher), "teacher, supervisor or admin.")
	createStaffDept := createStaffCmd.String("dept", "", "The department.")
	createStaffRegistry := createStaffCmd.String("registry", "", "The registry (TSC) number.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The staff member's email. The password will be prompted next.")

	seedCmd := flag.NewFlagSet("seed", flag.ContinueOnError)
	seedForce := seedCmd.Bool("force", false, "Load the fixtures even if staff accounts exist.")

	walkerCmd := flag.NewFlagSet("walker", flag.ContinueOnError)
	walkerName := walkerCmd.String("name", "", "The walker command name.")
	walkerActor := walkerCmd.String("actor", "", "The ID of the staff member running the command.")
	walkerPayload := walkerCmd.String("payload", "", "The JSON payload of the command.")

	for _, fs := range []*flag.FlagSet{createStaffCmd, resetPasswordCmd, seedCmd, walkerCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "createstaff":
		if err := createStaffCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *createStaffName == "" || *createStaffEmail == "" {
			createStaffCmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword("Enter password:")
		if err != nil {
			return err
		}
		return cli.createStaff(ctx, staff.NewMember{
			Name:            *createStaffName,
			Email:           *createStaffEmail,
			Role:            staff.Role(*createStaffRole),
			Department:      *createStaffDept,
			RegistryNumber:  *createStaffRegistry,
			Password:        pwd,
			PasswordConfirm: pwd,
		})

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword("Enter password:")
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(ctx, *resetPasswordEmail, pwd)

	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2], args[3:]...)

	case "seed":
		if err := seedCmd.Parse(args[2:]); err != nil {
			return err
		}
		seeded, err := cli.seeder.Seed(ctx, *seedForce)
		if err != nil {
			return err
		}
		if !seeded {
			fmt.Fprintln(cli.out, "staff accounts exist; nothing seeded (use -force)")
		}
		return nil

	case "walker":
		if err := walkerCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *walkerName == "" || *walkerActor == "" {
			walkerCmd.Usage()
			return errHelp
		}
		return cli.runWalker(ctx, *walkerName, *walkerActor, *walkerPayload)

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) createStaff(ctx context.Context, nm staff.NewMember) error {
	m, err := cli.staffSvc.Create(ctx, nm)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "created %s %s (%s)\n", m.Role, m.Email, m.ID)
	return nil
}

func (cli *commandLine) resetPassword(ctx context.Context, email, pwd string) error {
	m, err := cli.staffSvc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	_, err = cli.staffSvc.SetPassword(ctx, m.ID, pwd)
	return err
}

func (cli *commandLine) runWalker(ctx context.Context, name, actorID, payload string) error {
	cmd, err := walker.Decode(name, []byte(payload))
	if err != nil {
		return err
	}
	actor, err := cli.staffSvc.GetByID(ctx, actorID)
	if err != nil {
		return err
	}
	result, err := cli.dispatcher.Execute(ctx, actor, cmd)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding result")
	}
	fmt.Fprintln(cli.out, string(out))
	return nil
}
